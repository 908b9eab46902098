package authcore

import (
	"context"
	"fmt"

	"github.com/wokengineers/tezdm-authcore/internal/flows"
)

// Signout terminates the session. The remote termination call is best-effort
// and its failure is swallowed: local credentials are always cleared and the
// session always drops to anonymous, so a user can leave a stuck session
// even with the backend unreachable. Calling Signout with no stored session
// is a no-op that still leaves the session anonymous.
func (e *Engine) Signout(ctx context.Context) error {
	if e == nil || e.store == nil || e.gateway == nil {
		return ErrEngineNotReady
	}

	result := flows.RunSignout(ctx, flows.SignoutDeps{
		Tokens:        e.store.Tokens,
		RemoteSignout: e.gateway.Signout,
		Clear:         e.store.Clear,
		Warn: func(format string, args ...any) {
			e.logger.Warn(fmt.Sprintf(format, args...))
		},
	})

	e.forceReset()

	e.metricInc(MetricSignout)
	e.emitEvent(ctx, eventSignout, result.ClearErr == nil, result.ClearErr, func(ev *Event) {
		if result.RemoteErr != nil {
			ev.Metadata = map[string]string{"remote_error": result.RemoteErr.Error()}
		}
	})
	return result.ClearErr
}

// Logout is an alias for Signout kept for callers using the older verb.
func (e *Engine) Logout(ctx context.Context) error {
	return e.Signout(ctx)
}

// UpdateUser merges the given fields into the profile and persists the
// result. A no-op when no user is authenticated.
func (e *Engine) UpdateUser(ctx context.Context, update ProfileUpdate) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	epoch := e.epoch
	user := e.session.User
	authenticated := e.session.Status == StatusAuthenticated
	e.mu.Unlock()

	if !authenticated || user == nil {
		return nil
	}

	merged := flows.MergeProfile(user, update)
	if err := e.store.StoreUser(ctx, merged); err != nil {
		return err
	}

	e.mu.Lock()
	if !e.closed && epoch == e.epoch {
		e.session.User = merged
	}
	e.mu.Unlock()

	e.metricInc(MetricProfileUpdated)
	e.emitEvent(ctx, eventProfileUpdated, true, nil, func(ev *Event) {
		ev.UserID = merged.ID
	})
	return nil
}

// recordConnection appends a connected-account summary to the stored profile.
// Best-effort: a store failure is logged, not surfaced, because the
// connection itself already completed remotely.
func (e *Engine) recordConnection(ctx context.Context, account ConnectedAccountSummary) {
	e.mu.Lock()
	epoch := e.epoch
	user := e.session.User
	authenticated := !e.closed && e.session.Status == StatusAuthenticated
	e.mu.Unlock()

	if !authenticated || user == nil {
		return
	}

	merged := flows.AppendConnectedAccount(user, account)
	if err := e.store.StoreUser(ctx, merged); err != nil {
		e.logger.Warn("recording connected account failed", "platform", account.Platform, "error", err.Error())
		return
	}

	e.mu.Lock()
	if !e.closed && epoch == e.epoch {
		e.session.User = merged
	}
	e.mu.Unlock()
}
