package authcore

import (
	"context"
	"time"

	"github.com/wokengineers/tezdm-authcore/internal/flows"
)

// NavigationTarget tells the caller where to send the user after a resolved
// redirect.
type NavigationTarget uint8

const (
	// NavigateNone means the caller decides (failure outcomes).
	NavigateNone NavigationTarget = iota
	// NavigateAccounts is the account-management view, used when a session is
	// authenticated.
	NavigateAccounts
	// NavigateLogin is the login view, used when the connection completed
	// without a local session.
	NavigateLogin
)

func (t NavigationTarget) String() string {
	switch t {
	case NavigateAccounts:
		return "accounts"
	case NavigateLogin:
		return "login"
	default:
		return "none"
	}
}

// RedirectOutcome is the result of resolving an authorization redirect.
type RedirectOutcome struct {
	Account    ConnectedAccount
	GroupID    string
	PlatformID string

	Target NavigationTarget
	// Notice is a one-time informational message shown on the login view
	// when the connection completed without an authenticated session.
	Notice string
	// NavigateAfter is how long the caller should display the outcome before
	// navigating.
	NavigateAfter time.Duration
}

type redirectEntry struct {
	outcome RedirectOutcome
	err     error
}

// ResolveRedirect handles the browser landing back from the third-party
// authorization page. It is idempotent keyed by (code, state): an
// authorization code is consumed server-side on first use, so a replayed
// invocation (a re-render, a double navigation) returns the recorded outcome
// without a second exchange. Parameter validation happens before any network
// call; a malformed state never reaches the gateway.
func (e *Engine) ResolveRedirect(ctx context.Context, code, state string) (RedirectOutcome, error) {
	if e == nil || e.gateway == nil {
		return RedirectOutcome{}, ErrEngineNotReady
	}

	key := code + "\x1f" + state
	e.redirectMu.Lock()
	if entry, ok := e.redirects[key]; ok {
		e.redirectMu.Unlock()
		e.metricInc(MetricRedirectReplay)
		return entry.outcome, entry.err
	}
	e.redirectMu.Unlock()

	result := flows.RunResolveRedirect(ctx, code, state, flows.RedirectDeps{
		Exchange: func(ctx context.Context, code, state string) (flows.ConnectionRecord, error) {
			account, err := e.gateway.CompleteOAuthRedirect(ctx, code, state)
			if err != nil {
				return flows.ConnectionRecord{}, err
			}
			return flows.ConnectionRecord{
				Platform: account.Platform,
				Handle:   account.Handle,
				GroupID:  account.GroupID,
			}, nil
		},
	})

	switch result.Failure {
	case flows.RedirectFailureMissingParameter, flows.RedirectFailureMalformedState:
		// Nothing was consumed; no cache entry so a corrected URL can retry.
		e.metricInc(MetricRedirectFailure)
		e.emitEvent(ctx, eventRedirectResolved, false, result.Err, nil)
		return RedirectOutcome{}, result.Err

	case flows.RedirectFailureExchange:
		// The code is spent either way; record the failure so replays do not
		// produce duplicate error states.
		entry := redirectEntry{err: result.Err}
		e.storeRedirect(key, entry)
		e.metricInc(MetricRedirectFailure)
		e.emitEvent(ctx, eventRedirectResolved, false, result.Err, func(ev *Event) {
			ev.Platform = result.PlatformID
			ev.GroupID = result.GroupID
		})
		return RedirectOutcome{}, result.Err
	}

	authenticated := e.Snapshot().IsAuthenticated()
	outcome := RedirectOutcome{
		Account: ConnectedAccount{
			Platform: result.Record.Platform,
			Handle:   result.Record.Handle,
			GroupID:  result.Record.GroupID,
		},
		GroupID:       result.GroupID,
		PlatformID:    result.PlatformID,
		NavigateAfter: e.config.Redirect.NavigationDelay,
	}
	if authenticated {
		outcome.Target = NavigateAccounts
		e.recordConnection(ctx, ConnectedAccountSummary{
			Platform: result.Record.Platform,
			Handle:   result.Record.Handle,
		})
	} else {
		outcome.Target = NavigateLogin
		outcome.Notice = "Account connected. Sign in to manage it."
	}

	e.storeRedirect(key, redirectEntry{outcome: outcome})
	e.metricInc(MetricRedirectSuccess)
	e.emitEvent(ctx, eventRedirectResolved, true, nil, func(ev *Event) {
		ev.Platform = result.Record.Platform
		ev.GroupID = result.Record.GroupID
	})
	e.emitEvent(ctx, eventAccountConnected, true, nil, func(ev *Event) {
		ev.Platform = result.Record.Platform
		ev.GroupID = result.Record.GroupID
	})
	return outcome, nil
}

func (e *Engine) storeRedirect(key string, entry redirectEntry) {
	e.redirectMu.Lock()
	e.redirects[key] = entry
	e.redirectMu.Unlock()
}
