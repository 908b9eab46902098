package authcore

import (
	"context"

	"github.com/wokengineers/tezdm-authcore/gateway"
	"github.com/wokengineers/tezdm-authcore/internal/flows"
	"github.com/wokengineers/tezdm-authcore/token"
)

func (e *Engine) passwordDeps() flows.PasswordDeps {
	toRecord := func(payload gateway.LoginPayload) flows.LoginRecord {
		return flows.LoginRecord{
			AccessToken:  payload.AccessToken,
			RefreshToken: payload.RefreshToken,
			GroupID:      payload.GroupID,
			User: flows.AccountRecord{
				ID:        payload.User.ID,
				Name:      payload.User.Name,
				Email:     payload.User.Email,
				AvatarURL: payload.User.AvatarURL,
				Plan:      payload.User.Plan,
			},
		}
	}
	return flows.PasswordDeps{
		Template: flows.ProfileTemplate{
			AvatarURLTemplate: e.config.Session.AvatarURLTemplate,
			DefaultPlan:       e.config.Session.DefaultPlan,
		},
		Now:          e.now,
		NewProfileID: e.newID,
		Login: func(ctx context.Context, email, password string) (flows.LoginRecord, error) {
			payload, err := e.gateway.Login(ctx, email, password)
			if err != nil {
				return flows.LoginRecord{}, err
			}
			return toRecord(payload), nil
		},
		Signup: func(ctx context.Context, name, email, password string) (flows.LoginRecord, error) {
			payload, err := e.gateway.Signup(ctx, name, email, password)
			if err != nil {
				return flows.LoginRecord{}, err
			}
			return toRecord(payload), nil
		},
		TokenExpiry: token.Expiry,
		Persist:     e.store.StoreSession,
	}
}

// Login is the legacy single-round-trip password path. Failures return the
// session to the email step.
func (e *Engine) Login(ctx context.Context, email, password string) error {
	epoch, err := e.beginLoading()
	if err != nil {
		return err
	}

	result := flows.RunLogin(ctx, email, password, e.passwordDeps())
	if result.Failure != flows.PasswordFailureNone {
		e.failStep(epoch, StepEmail, result.Err)
		e.metricInc(MetricLoginFailure)
		e.emitEvent(ctx, eventLogin, false, result.Err, func(ev *Event) {
			ev.Email = email
		})
		return result.Err
	}

	if !e.completeLogin(epoch, email, result.Profile) {
		e.clearSupersededLogin()
		return nil
	}
	e.metricInc(MetricLoginSuccess)
	e.emitEvent(ctx, eventLogin, true, nil, func(ev *Event) {
		ev.Email = email
		ev.UserID = result.Profile.ID
		ev.GroupID = result.Tokens.GroupID
	})
	return nil
}

// Signup is the legacy single-round-trip registration path.
func (e *Engine) Signup(ctx context.Context, name, email, password string) error {
	epoch, err := e.beginLoading()
	if err != nil {
		return err
	}

	result := flows.RunSignup(ctx, name, email, password, e.passwordDeps())
	if result.Failure != flows.PasswordFailureNone {
		e.failStep(epoch, StepEmail, result.Err)
		e.metricInc(MetricSignupFailure)
		e.emitEvent(ctx, eventSignup, false, result.Err, func(ev *Event) {
			ev.Email = email
		})
		return result.Err
	}

	if !e.completeLogin(epoch, email, result.Profile) {
		e.clearSupersededLogin()
		return nil
	}
	e.metricInc(MetricSignupSuccess)
	e.emitEvent(ctx, eventSignup, true, nil, func(ev *Event) {
		ev.Email = email
		ev.UserID = result.Profile.ID
		ev.GroupID = result.Tokens.GroupID
	})
	return nil
}
