package authcore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Engine is the authentication/session core. It owns the session state
// machine, the credential store and gateway collaborators, the active
// connection poller, the redirect resolver cache, the event dispatcher, and
// metrics. Construct it through [Builder.Build].
type Engine struct {
	config  Config
	store   CredentialStore
	gateway Gateway
	events  *eventDispatcher
	metrics *Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	session Session
	// epoch invalidates in-flight login steps: a forced reset (signout,
	// global logout) bumps it, and any step that started under an older
	// epoch discards its session mutation instead of resurrecting the
	// signed-out session.
	epoch  uint64
	closed bool
	poller *Poller

	redirectMu sync.Mutex
	redirects  map[string]redirectEntry

	watchCancel context.CancelFunc
	watchDone   chan struct{}

	nowFn func() time.Time
	newID func() string
}

func (e *Engine) now() time.Time {
	if e.nowFn != nil {
		return e.nowFn()
	}
	return time.Now()
}

// Snapshot returns a point-in-time copy of the session. The returned profile
// is a deep copy; mutating it does not affect the engine.
func (e *Engine) Snapshot() Session {
	if e == nil {
		return Session{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.session
	out.User = cloneProfile(e.session.User)
	return out
}

// Close stops the global-logout watcher, the active poller, and the event
// dispatcher. The engine is unusable afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	poller := e.poller
	e.poller = nil
	e.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
	if e.watchCancel != nil {
		e.watchCancel()
		<-e.watchDone
	}
	if e.events != nil {
		e.events.Close()
	}
}

// MetricsSnapshot returns a deep copy of all metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// EventsDropped reports how many events the dispatcher dropped under
// backpressure.
func (e *Engine) EventsDropped() uint64 {
	if e == nil || e.events == nil {
		return 0
	}
	return e.events.Dropped()
}

// beginLoading enters the loading step and returns the epoch the caller must
// present when applying its outcome.
func (e *Engine) beginLoading() (uint64, error) {
	if e == nil || e.store == nil || e.gateway == nil {
		return 0, ErrEngineNotReady
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrEngineClosed
	}
	e.session.Step = StepLoading
	e.session.LastError = ""
	return e.epoch, nil
}

// failStep records a failure and reverts to the given step. The mutation is
// skipped when a reset has happened since the step began.
func (e *Engine) failStep(epoch uint64, revert OTPStep, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || epoch != e.epoch {
		return
	}
	e.session.Step = revert
	if err != nil {
		e.session.LastError = err.Error()
	}
}

// completeLogin flips the session to authenticated. Reports false when a
// reset has happened since the step began; the caller must then discard the
// credentials its flow persisted, because the reset's store wipe may have
// run before that persist landed.
func (e *Engine) completeLogin(epoch uint64, email string, user *Profile) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || epoch != e.epoch {
		return false
	}
	e.session = Session{
		Status: StatusAuthenticated,
		Step:   StepSuccess,
		Email:  email,
		User:   user,
	}
	return true
}

// clearSupersededLogin removes credentials persisted by a login sequence
// that lost the race against a reset. Without this, a persist suspended
// across the reset would write the wiped session back into the store and
// the next startup would resurrect it.
func (e *Engine) clearSupersededLogin() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.Clear(ctx); err != nil {
		e.logger.Warn("clearing superseded login credentials failed", slog.String("error", err.Error()))
	}
}

// forceReset drops the session to anonymous and invalidates in-flight steps.
func (e *Engine) forceReset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	e.session = Session{Status: StatusAnonymous, Step: StepEmail}
}

// restoreSession is the startup reconciliation: wipe on integrity failure,
// otherwise load the stored session if one is live.
func (e *Engine) restoreSession(ctx context.Context) error {
	report, err := e.store.Validate(ctx)
	if err != nil {
		return fmt.Errorf("credential validation: %w", err)
	}
	if !report.Valid {
		if err := e.store.Clear(ctx); err != nil {
			return fmt.Errorf("credential wipe: %w", err)
		}
		e.logger.Warn("stored credentials failed validation, wiped",
			slog.String("errors", strings.Join(report.Errors, "; ")))
		e.metricInc(MetricIntegrityWipe)
		e.emitEvent(ctx, eventIntegrityWipe, false, ErrCredentialsCorrupt, func(ev *Event) {
			ev.Metadata = map[string]string{"errors": strings.Join(report.Errors, "; ")}
		})
		return nil
	}

	authenticated, err := e.store.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !authenticated {
		return nil
	}

	user, err := e.store.User(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	e.mu.Lock()
	e.session = Session{
		Status: StatusAuthenticated,
		Step:   StepSuccess,
		Email:  user.Email,
		User:   user,
	}
	e.mu.Unlock()

	e.metricInc(MetricSessionRestored)
	e.emitEvent(ctx, eventSessionRestored, true, nil, func(ev *Event) {
		ev.UserID = user.ID
		ev.Email = user.Email
	})
	return nil
}

// watchGlobalLogout observes the gateway's out-of-band logout signal and
// forces the signout reset without waiting on any in-flight operation.
func (e *Engine) watchGlobalLogout(ctx context.Context, signal <-chan struct{}) {
	defer close(e.watchDone)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signal:
			if !ok {
				return
			}
			e.handleGlobalLogout()
		}
	}
}

func (e *Engine) handleGlobalLogout() {
	e.forceReset()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.Clear(ctx); err != nil {
		e.logger.Warn("global logout: clearing credentials failed", slog.String("error", err.Error()))
	}

	e.logger.Info("global logout signal received, session reset")
	e.metricInc(MetricGlobalLogout)
	e.emitEvent(ctx, eventGlobalLogout, true, nil, nil)
}

func cloneProfile(p *Profile) *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.ConnectedAccounts = append([]ConnectedAccountSummary(nil), p.ConnectedAccounts...)
	return &out
}
