package authcore

import (
	"context"

	"github.com/wokengineers/tezdm-authcore/credstore"
	"github.com/wokengineers/tezdm-authcore/gateway"
	"github.com/wokengineers/tezdm-authcore/internal/flows"
)

// AuthStatus is the authentication state of the session.
type AuthStatus uint8

const (
	// StatusAnonymous means no live credential set is stored.
	StatusAnonymous AuthStatus = iota
	// StatusAuthenticated means a live, group-scoped credential set is stored.
	StatusAuthenticated
)

func (s AuthStatus) String() string {
	switch s {
	case StatusAnonymous:
		return "anonymous"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// OTPStep is the position in the multi-step OTP login sequence. Steps only
// move forward through email -> otp -> loading -> {otp (retry) | success};
// reaching StepSuccess implies tokens have been durably stored.
type OTPStep uint8

const (
	// StepEmail is the initial step: the user is entering an address.
	StepEmail OTPStep = iota
	// StepOTP means a passcode was requested and is awaited.
	StepOTP
	// StepLoading covers an in-flight remote call.
	StepLoading
	// StepSuccess is the terminal step of a completed login.
	StepSuccess
)

func (s OTPStep) String() string {
	switch s {
	case StepEmail:
		return "email"
	case StepOTP:
		return "otp"
	case StepLoading:
		return "loading"
	case StepSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// PollStatus is the connection poller state. Transitions are strictly
// idle -> polling -> {success | error | timeout}; no polling happens after a
// terminal state.
type PollStatus uint8

const (
	// PollIdle means the attempt exists but polling has not started.
	PollIdle PollStatus = iota
	// PollPolling means the status endpoint is being queried periodically.
	PollPolling
	// PollSuccess means the out-of-band authorization completed.
	PollSuccess
	// PollError means a status query failed.
	PollError
	// PollTimeout means the countdown expired before the authorization completed.
	PollTimeout
)

func (s PollStatus) String() string {
	switch s {
	case PollIdle:
		return "idle"
	case PollPolling:
		return "polling"
	case PollSuccess:
		return "success"
	case PollError:
		return "error"
	case PollTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Session is a point-in-time copy of the engine's session state.
type Session struct {
	Status    AuthStatus
	Step      OTPStep
	Email     string
	LastError string
	User      *Profile
}

// IsAuthenticated reports whether the session holds a signed-in user.
func (s Session) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

// IsLoading reports whether a login step is in flight.
func (s Session) IsLoading() bool {
	return s.Step == StepLoading
}

// ConnectionSnapshot is a point-in-time copy of a connection attempt,
// suitable for rendering a countdown UI.
type ConnectionSnapshot struct {
	Platform         string
	StateToken       string
	Status           PollStatus
	RemainingSeconds int
	LastError        string
}

// TokenSet is the persisted credential record.
type TokenSet = credstore.TokenSet

// Profile is the stored user profile.
type Profile = credstore.Profile

// ConnectedAccountSummary is the per-platform connection digest kept on the
// profile.
type ConnectedAccountSummary = credstore.ConnectedAccountSummary

// IntegrityReport is the result of a full credential validation pass.
type IntegrityReport = credstore.Report

// ProfileUpdate is a partial profile mutation; nil fields are left untouched.
type ProfileUpdate = flows.ProfileUpdate

// ConnectedAccount is the finalized connection record returned by the OAuth
// completion endpoint.
type ConnectedAccount = gateway.ConnectedAccount

// CredentialStore is the persistence surface the engine drives. Implemented
// by [credstore.Store]; tests substitute fakes.
type CredentialStore interface {
	Tokens(ctx context.Context) (*TokenSet, error)
	User(ctx context.Context) (*Profile, error)
	StoreTokens(ctx context.Context, ts *TokenSet) error
	StoreUser(ctx context.Context, profile *Profile) error
	StoreSession(ctx context.Context, profile *Profile, ts *TokenSet) error
	IsAuthenticated(ctx context.Context) (bool, error)
	Validate(ctx context.Context) (IntegrityReport, error)
	Clear(ctx context.Context) error
}

// Gateway is the remote call surface the engine drives. Implemented by
// [gateway.Client]; tests substitute stubs.
type Gateway interface {
	GenerateOTP(ctx context.Context, email string) error
	ValidateOTP(ctx context.Context, email, code string) (gateway.TokenPair, error)
	Groups(ctx context.Context, accessToken string) ([]gateway.Group, error)
	RefreshWithGroup(ctx context.Context, refreshToken, groupID string) (gateway.GroupTokens, error)
	Signout(ctx context.Context, refreshToken, groupID string) error
	Login(ctx context.Context, email, password string) (gateway.LoginPayload, error)
	Signup(ctx context.Context, name, email, password string) (gateway.LoginPayload, error)
	OAuthStatus(ctx context.Context, stateToken string) (gateway.OAuthState, error)
	CompleteOAuthRedirect(ctx context.Context, code, state string) (gateway.ConnectedAccount, error)
}
