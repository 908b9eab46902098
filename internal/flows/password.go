package flows

import (
	"context"
	"time"

	"github.com/wokengineers/tezdm-authcore/credstore"
)

// PasswordFailureKind classifies the legacy single-round-trip paths.
type PasswordFailureKind int

const (
	PasswordFailureNone PasswordFailureKind = iota
	PasswordFailureValidation
	PasswordFailureRemote
	PasswordFailureTokenExpiry
	PasswordFailurePersist
)

// AccountRecord is the flow-local profile payload from the legacy endpoints.
type AccountRecord struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
	Plan      string
}

// LoginRecord is the flow-local response of the legacy endpoints: a complete
// group-scoped token set plus the account it belongs to.
type LoginRecord struct {
	AccessToken  string
	RefreshToken string
	GroupID      string
	User         AccountRecord
}

// PasswordDeps captures legacy login/signup dependencies.
type PasswordDeps struct {
	Template ProfileTemplate

	Now          func() time.Time
	NewProfileID func() string

	Login       func(ctx context.Context, email, password string) (LoginRecord, error)
	Signup      func(ctx context.Context, name, email, password string) (LoginRecord, error)
	TokenExpiry func(access string) (time.Time, error)
	Persist     func(ctx context.Context, profile *credstore.Profile, tokens *credstore.TokenSet) error
}

// PasswordResult carries the persisted session material or failure metadata.
type PasswordResult struct {
	Failure PasswordFailureKind
	Err     error
	Profile *credstore.Profile
	Tokens  *credstore.TokenSet
}

// RunLogin performs the legacy email/password round trip.
func RunLogin(ctx context.Context, email, password string, deps PasswordDeps) PasswordResult {
	if err := ValidateEmail(email); err != nil {
		return PasswordResult{Failure: PasswordFailureValidation, Err: err}
	}
	if err := ValidatePassword(password); err != nil {
		return PasswordResult{Failure: PasswordFailureValidation, Err: err}
	}
	record, err := deps.Login(ctx, email, password)
	if err != nil {
		return PasswordResult{Failure: PasswordFailureRemote, Err: err}
	}
	return finishPasswordFlow(ctx, email, record, deps)
}

// RunSignup performs the legacy registration round trip.
func RunSignup(ctx context.Context, name, email, password string, deps PasswordDeps) PasswordResult {
	if err := ValidateName(name); err != nil {
		return PasswordResult{Failure: PasswordFailureValidation, Err: err}
	}
	if err := ValidateEmail(email); err != nil {
		return PasswordResult{Failure: PasswordFailureValidation, Err: err}
	}
	if err := ValidatePassword(password); err != nil {
		return PasswordResult{Failure: PasswordFailureValidation, Err: err}
	}
	record, err := deps.Signup(ctx, name, email, password)
	if err != nil {
		return PasswordResult{Failure: PasswordFailureRemote, Err: err}
	}
	if record.User.Name == "" {
		record.User.Name = name
	}
	return finishPasswordFlow(ctx, email, record, deps)
}

func finishPasswordFlow(ctx context.Context, email string, record LoginRecord, deps PasswordDeps) PasswordResult {
	expiresAt, err := deps.TokenExpiry(record.AccessToken)
	if err != nil {
		return PasswordResult{Failure: PasswordFailureTokenExpiry, Err: err}
	}

	now := time.Now()
	if deps.Now != nil {
		now = deps.Now()
	}

	// The gateway's account payload wins; synthesized fields only fill gaps.
	profile := SynthesizeProfile(record.User.ID, email, now, deps.Template)
	if profile.ID == "" {
		profile.ID = deps.NewProfileID()
	}
	if record.User.Name != "" {
		profile.Name = record.User.Name
	}
	if record.User.Email != "" {
		profile.Email = record.User.Email
	}
	if record.User.AvatarURL != "" {
		profile.AvatarURL = record.User.AvatarURL
	}
	if record.User.Plan != "" {
		profile.Plan = record.User.Plan
	}

	tokens := &credstore.TokenSet{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		GroupID:      record.GroupID,
		ExpiresAt:    expiresAt.Unix(),
	}
	if err := deps.Persist(ctx, profile, tokens); err != nil {
		return PasswordResult{Failure: PasswordFailurePersist, Err: err}
	}
	return PasswordResult{Profile: profile, Tokens: tokens}
}
