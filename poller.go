package authcore

import (
	"context"
	"sync"
	"time"

	"github.com/wokengineers/tezdm-authcore/gateway"
)

// Poller drives one connection attempt: a periodic status query against the
// gateway's OAuth-status endpoint paired with a countdown, both running in a
// single goroutine under one cancellation. Timeout absorbs a late success:
// once the countdown's budget has elapsed, a token_available response is
// discarded. After any terminal state no further network calls happen.
type Poller struct {
	platform string
	state    string
	interval time.Duration
	grace    time.Duration

	now    func() time.Time
	status func(ctx context.Context, state string) (gateway.OAuthState, error)
	// notify fires exactly once, when the run loop exits: either with a
	// terminal snapshot or with cancelled set when the attempt was abandoned
	// before reaching one.
	notify func(snap ConnectionSnapshot, cancelled bool)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	st        PollStatus
	remaining int
	lastErr   string
}

type pollerConfig struct {
	platform string
	state    string
	interval time.Duration
	seconds  int
	grace    time.Duration
	now      func() time.Time
	status   func(ctx context.Context, state string) (gateway.OAuthState, error)
	notify   func(snap ConnectionSnapshot, cancelled bool)
}

func newPoller(cfg pollerConfig) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		platform:  cfg.platform,
		state:     cfg.state,
		interval:  cfg.interval,
		grace:     cfg.grace,
		now:       cfg.now,
		status:    cfg.status,
		notify:    cfg.notify,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		st:        PollIdle,
		remaining: cfg.seconds,
	}
}

func (p *Poller) start() {
	p.mu.Lock()
	p.st = PollPolling
	p.mu.Unlock()
	go p.run()
}

// Snapshot returns the attempt's current state for rendering.
func (p *Poller) Snapshot() ConnectionSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	remaining := p.remaining
	if remaining < 0 {
		remaining = 0
	}
	return ConnectionSnapshot{
		Platform:         p.platform,
		StateToken:       p.state,
		Status:           p.st,
		RemainingSeconds: remaining,
		LastError:        p.lastErr,
	}
}

// Done is closed when the poll goroutine has fully exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Stop cancels the attempt and waits for the goroutine to exit. Idempotent;
// stopping an attempt that already reached a terminal state is a no-op.
func (p *Poller) Stop() {
	if p == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Poller) run() {
	defer close(p.done)

	statusTicker := time.NewTicker(p.interval)
	defer statusTicker.Stop()
	countdown := time.NewTicker(p.interval)
	defer countdown.Stop()

	// Wall-clock bound on the whole attempt. Ticker coalescing under a slow
	// status call must not extend the attempt past its budget.
	deadline := p.now().Add(time.Duration(p.snapshotRemaining()) * p.interval)

	for {
		select {
		case <-p.ctx.Done():
			p.notify(p.Snapshot(), true)
			return

		case <-countdown.C:
			if p.decrement() <= 0 {
				p.setTerminal(PollTimeout, "")
				p.notify(p.Snapshot(), false)
				return
			}

		case <-statusTicker.C:
			state, err := p.status(p.ctx, p.state)
			if p.ctx.Err() != nil {
				p.notify(p.Snapshot(), true)
				return
			}
			if err != nil {
				p.setTerminal(PollError, err.Error())
				p.notify(p.Snapshot(), false)
				return
			}
			if state != gateway.OAuthTokenAvailable {
				continue
			}
			// Timeout precedence: a success landing after the countdown's
			// budget is treated as timeout, never success.
			if p.snapshotRemaining() <= 0 || !p.now().Before(deadline) {
				p.setTerminal(PollTimeout, "")
				p.notify(p.Snapshot(), false)
				return
			}
			p.setTerminal(PollSuccess, "")
			if !p.graceWait() {
				// Abandoned during the grace delay; the consumer is gone.
				p.notify(p.Snapshot(), true)
				return
			}
			p.notify(p.Snapshot(), false)
			return
		}
	}
}

// graceWait pauses between observing success and notifying listeners, so the
// user perceives the success state. Reports false when cancelled.
func (p *Poller) graceWait() bool {
	if p.grace <= 0 {
		return true
	}
	timer := time.NewTimer(p.grace)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-p.ctx.Done():
		return false
	}
}

func (p *Poller) decrement() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remaining--
	return p.remaining
}

func (p *Poller) snapshotRemaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining
}

func (p *Poller) setTerminal(st PollStatus, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.st = st
	p.lastErr = errMsg
}
