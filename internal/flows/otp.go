package flows

import (
	"context"
	"errors"
	"time"

	"github.com/wokengineers/tezdm-authcore/credstore"
)

// OTPFailureKind classifies OTP flow failures for root-level mapping. The
// kind decides which step the session reverts to: generation failures return
// to the email step, validation-sequence failures return to the code step so
// the user can retry without requesting a new passcode.
type OTPFailureKind int

const (
	OTPFailureNone OTPFailureKind = iota
	OTPFailureValidation
	OTPFailureGenerate
	OTPFailureExchange
	OTPFailureGroupList
	OTPFailureNoGroups
	OTPFailureGroupRefresh
	OTPFailureTokenExpiry
	OTPFailurePersist
)

// ErrNoGroups is surfaced when the account has no groups to scope tokens to.
var ErrNoGroups = errors.New("No groups found for this user")

// GroupRecord is the flow-local view of a gateway group.
type GroupRecord struct {
	ID   string
	Name string
}

// OTPDeps captures OTP flow dependencies.
type OTPDeps struct {
	OTPCodeLength int
	Template      ProfileTemplate

	Now          func() time.Time
	NewProfileID func() string

	GenerateOTP      func(ctx context.Context, email string) error
	ExchangeOTP      func(ctx context.Context, email, code string) (access, refresh string, err error)
	FetchGroups      func(ctx context.Context, access string) ([]GroupRecord, error)
	RefreshWithGroup func(ctx context.Context, refresh, groupID string) (access, newRefresh string, err error)
	TokenExpiry      func(access string) (time.Time, error)
	Persist          func(ctx context.Context, profile *credstore.Profile, tokens *credstore.TokenSet) error
}

// GenerateOTPResult reports the outcome of the passcode request.
type GenerateOTPResult struct {
	Failure OTPFailureKind
	Err     error
}

// RunGenerateOTP validates the address and asks the gateway for a passcode.
// No credential state is touched here.
func RunGenerateOTP(ctx context.Context, email string, deps OTPDeps) GenerateOTPResult {
	if err := ValidateEmail(email); err != nil {
		return GenerateOTPResult{Failure: OTPFailureValidation, Err: err}
	}
	if err := deps.GenerateOTP(ctx, email); err != nil {
		return GenerateOTPResult{Failure: OTPFailureGenerate, Err: err}
	}
	return GenerateOTPResult{}
}

// ValidateOTPResult carries either the persisted session material or failure
// metadata.
type ValidateOTPResult struct {
	Failure OTPFailureKind
	Err     error
	Profile *credstore.Profile
	Tokens  *credstore.TokenSet
	GroupID string
}

// RunValidateOTP executes the full validation sequence. The steps are
// strictly ordered because each consumes the previous step's output:
// passcode exchange, group listing, group-scoped refresh, expiry derivation,
// then one atomic persist. Nothing is stored until every earlier step has
// succeeded.
func RunValidateOTP(ctx context.Context, email, code string, deps OTPDeps) ValidateOTPResult {
	if err := ValidateEmail(email); err != nil {
		return ValidateOTPResult{Failure: OTPFailureValidation, Err: err}
	}
	codeLength := deps.OTPCodeLength
	if codeLength <= 0 {
		codeLength = 6
	}
	if err := ValidateOTPCode(code, codeLength); err != nil {
		return ValidateOTPResult{Failure: OTPFailureValidation, Err: err}
	}

	initialAccess, initialRefresh, err := deps.ExchangeOTP(ctx, email, code)
	if err != nil {
		return ValidateOTPResult{Failure: OTPFailureExchange, Err: err}
	}

	groups, err := deps.FetchGroups(ctx, initialAccess)
	if err != nil {
		return ValidateOTPResult{Failure: OTPFailureGroupList, Err: err}
	}
	if len(groups) == 0 {
		return ValidateOTPResult{Failure: OTPFailureNoGroups, Err: ErrNoGroups}
	}
	group := groups[0]

	finalAccess, finalRefresh, err := deps.RefreshWithGroup(ctx, initialRefresh, group.ID)
	if err != nil {
		return ValidateOTPResult{Failure: OTPFailureGroupRefresh, Err: err, GroupID: group.ID}
	}

	expiresAt, err := deps.TokenExpiry(finalAccess)
	if err != nil {
		return ValidateOTPResult{Failure: OTPFailureTokenExpiry, Err: err, GroupID: group.ID}
	}

	now := time.Now()
	if deps.Now != nil {
		now = deps.Now()
	}
	profile := SynthesizeProfile(deps.NewProfileID(), email, now, deps.Template)
	tokens := &credstore.TokenSet{
		AccessToken:  finalAccess,
		RefreshToken: finalRefresh,
		GroupID:      group.ID,
		ExpiresAt:    expiresAt.Unix(),
	}

	if err := deps.Persist(ctx, profile, tokens); err != nil {
		return ValidateOTPResult{Failure: OTPFailurePersist, Err: err, GroupID: group.ID}
	}

	return ValidateOTPResult{
		Profile: profile,
		Tokens:  tokens,
		GroupID: group.ID,
	}
}
