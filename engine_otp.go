package authcore

import (
	"context"

	"github.com/wokengineers/tezdm-authcore/internal/flows"
	"github.com/wokengineers/tezdm-authcore/token"
)

func (e *Engine) otpDeps() flows.OTPDeps {
	return flows.OTPDeps{
		OTPCodeLength: e.config.Session.OTPCodeLength,
		Template: flows.ProfileTemplate{
			AvatarURLTemplate: e.config.Session.AvatarURLTemplate,
			DefaultPlan:       e.config.Session.DefaultPlan,
		},
		Now:          e.now,
		NewProfileID: e.newID,
		GenerateOTP:  e.gateway.GenerateOTP,
		ExchangeOTP: func(ctx context.Context, email, code string) (string, string, error) {
			pair, err := e.gateway.ValidateOTP(ctx, email, code)
			if err != nil {
				return "", "", err
			}
			return pair.AccessToken, pair.RefreshToken, nil
		},
		FetchGroups: func(ctx context.Context, access string) ([]flows.GroupRecord, error) {
			groups, err := e.gateway.Groups(ctx, access)
			if err != nil {
				return nil, err
			}
			out := make([]flows.GroupRecord, 0, len(groups))
			for _, g := range groups {
				out = append(out, flows.GroupRecord{ID: g.ID, Name: g.Name})
			}
			return out, nil
		},
		RefreshWithGroup: func(ctx context.Context, refresh, groupID string) (string, string, error) {
			scoped, err := e.gateway.RefreshWithGroup(ctx, refresh, groupID)
			if err != nil {
				return "", "", err
			}
			return scoped.AccessToken, scoped.RefreshToken, nil
		},
		TokenExpiry: token.Expiry,
		Persist:     e.store.StoreSession,
	}
}

// GenerateOTP asks the gateway to send a passcode to the address. On success
// the session advances to the passcode step; on failure it returns to the
// email step with the failure recorded.
func (e *Engine) GenerateOTP(ctx context.Context, email string) error {
	epoch, err := e.beginLoading()
	if err != nil {
		return err
	}

	result := flows.RunGenerateOTP(ctx, email, e.otpDeps())
	if result.Failure != flows.OTPFailureNone {
		e.failStep(epoch, StepEmail, result.Err)
		e.metricInc(MetricOTPGenerateFailure)
		e.emitEvent(ctx, eventOTPRequested, false, result.Err, func(ev *Event) {
			ev.Email = email
		})
		return result.Err
	}

	e.mu.Lock()
	if !e.closed && epoch == e.epoch {
		e.session.Step = StepOTP
		e.session.Email = email
		e.session.LastError = ""
	}
	e.mu.Unlock()

	e.metricInc(MetricOTPGenerateSuccess)
	e.emitEvent(ctx, eventOTPRequested, true, nil, func(ev *Event) {
		ev.Email = email
	})
	return nil
}

// ValidateOTP runs the full login sequence: exchange the passcode, list
// groups, refresh against the first group, derive the token expiry, persist
// the session atomically. Any failure in the sequence returns the session to
// the passcode step so the user can retry the code without requesting a new
// one; nothing is persisted unless every step succeeded.
func (e *Engine) ValidateOTP(ctx context.Context, email, code string) error {
	epoch, err := e.beginLoading()
	if err != nil {
		return err
	}

	start := e.now()
	result := flows.RunValidateOTP(ctx, email, code, e.otpDeps())
	e.metricObserve(MetricValidateOTPLatency, e.now().Sub(start))

	if result.Failure != flows.OTPFailureNone {
		e.failStep(epoch, StepOTP, result.Err)
		e.metricInc(MetricOTPValidateFailure)
		if result.Failure == flows.OTPFailureNoGroups {
			e.metricInc(MetricNoGroups)
		}
		e.emitEvent(ctx, eventOTPValidated, false, result.Err, func(ev *Event) {
			ev.Email = email
			ev.GroupID = result.GroupID
		})
		return result.Err
	}

	if !e.completeLogin(epoch, email, result.Profile) {
		e.clearSupersededLogin()
		return nil
	}
	e.metricInc(MetricOTPValidateSuccess)
	e.emitEvent(ctx, eventOTPValidated, true, nil, func(ev *Event) {
		ev.Email = email
		ev.UserID = result.Profile.ID
		ev.GroupID = result.GroupID
	})
	return nil
}
