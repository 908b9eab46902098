package authcore

import (
	"context"
	"time"
)

const (
	eventOTPRequested     = "otp_requested"
	eventOTPValidated     = "otp_validated"
	eventLogin            = "login"
	eventSignup           = "signup"
	eventSignout          = "signout"
	eventSessionRestored  = "session_restored"
	eventIntegrityWipe    = "integrity_wipe"
	eventGlobalLogout     = "global_logout"
	eventProfileUpdated   = "profile_updated"
	eventConnectStarted   = "connect_started"
	eventConnectResolved  = "connect_resolved"
	eventAccountConnected = "account_connected"
	eventRedirectResolved = "redirect_resolved"
)

func (e *Engine) emitEvent(
	ctx context.Context,
	eventType string,
	success bool,
	err error,
	mutate func(*Event),
) {
	if e == nil || e.events == nil {
		return
	}

	event := Event{
		Timestamp: e.now().UTC(),
		Type:      eventType,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if mutate != nil {
		mutate(&event)
	}

	e.events.Emit(ctx, event)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}
