package authcore

import (
	"context"
	"fmt"
	"net/url"

	"github.com/wokengineers/tezdm-authcore/internal/flows"
)

// ConnectOptions carries optional per-attempt callbacks.
type ConnectOptions struct {
	// OnComplete runs after the grace delay when the attempt succeeds. It is
	// invoked on the poll goroutine.
	OnComplete func(ConnectionSnapshot)
}

// Connect starts polling for completion of an out-of-band OAuth
// authorization. The state token is extracted from the OAuth URL's query.
// Any poller from a previous attempt is fully stopped first: at most one
// attempt is active at a time.
func (e *Engine) Connect(platform, oauthURL string, opts ConnectOptions) (*Poller, error) {
	if e == nil || e.gateway == nil {
		return nil, ErrEngineNotReady
	}

	parsed, err := url.Parse(oauthURL)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth url: %w", err)
	}
	state := parsed.Query().Get("state")
	if state == "" {
		return nil, ErrMissingStateToken
	}

	p := newPoller(pollerConfig{
		platform: platform,
		state:    state,
		interval: e.config.Connect.PollInterval,
		seconds:  e.config.Connect.CountdownSeconds,
		grace:    e.config.Connect.SuccessGraceDelay,
		now:      e.now,
		status:   e.gateway.OAuthStatus,
	})
	p.notify = func(snap ConnectionSnapshot, cancelled bool) {
		e.finishConnection(p, snap, cancelled, opts)
	}

	// Swap and start happen in one critical section so two concurrent
	// Connect calls cannot both observe the same previous poller, and so any
	// poller reachable through e.poller is already running and safe to Stop.
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		p.cancel()
		close(p.done)
		return nil, ErrEngineClosed
	}
	previous := e.poller
	e.poller = p
	p.start()
	e.mu.Unlock()

	// Stop outside the lock: the old poller's notify callback takes e.mu.
	if previous != nil {
		previous.Stop()
	}

	e.metricInc(MetricPollStarted)
	e.emitEvent(context.Background(), eventConnectStarted, true, nil, func(ev *Event) {
		ev.Platform = platform
	})
	return p, nil
}

// ActiveConnection reports the in-flight attempt, if any.
func (e *Engine) ActiveConnection() (ConnectionSnapshot, bool) {
	if e == nil {
		return ConnectionSnapshot{}, false
	}
	e.mu.Lock()
	p := e.poller
	e.mu.Unlock()
	if p == nil {
		return ConnectionSnapshot{}, false
	}
	return p.Snapshot(), true
}

// finishConnection runs exactly once per attempt, on the poll goroutine.
func (e *Engine) finishConnection(p *Poller, snap ConnectionSnapshot, cancelled bool, opts ConnectOptions) {
	e.mu.Lock()
	if e.poller == p {
		e.poller = nil
	}
	e.mu.Unlock()

	ctx := context.Background()

	if cancelled {
		e.metricInc(MetricPollCancelled)
		e.emitEvent(ctx, eventConnectResolved, false, nil, func(ev *Event) {
			ev.Platform = snap.Platform
			ev.Metadata = map[string]string{"outcome": "cancelled"}
		})
		return
	}

	switch snap.Status {
	case PollSuccess:
		e.metricInc(MetricPollSuccess)
		groupID := ""
		if parts, err := flows.ParseStateToken(snap.StateToken); err == nil {
			groupID = parts.GroupID
		}
		e.emitEvent(ctx, eventAccountConnected, true, nil, func(ev *Event) {
			ev.Platform = snap.Platform
			ev.GroupID = groupID
		})
		if opts.OnComplete != nil {
			opts.OnComplete(snap)
		}

	case PollError:
		e.metricInc(MetricPollError)
		e.emitEvent(ctx, eventConnectResolved, false, nil, func(ev *Event) {
			ev.Platform = snap.Platform
			ev.Error = snap.LastError
			ev.Metadata = map[string]string{"outcome": "error"}
		})

	case PollTimeout:
		e.metricInc(MetricPollTimeout)
		e.emitEvent(ctx, eventConnectResolved, false, nil, func(ev *Event) {
			ev.Platform = snap.Platform
			ev.Metadata = map[string]string{"outcome": "timeout"}
		})
	}
}
