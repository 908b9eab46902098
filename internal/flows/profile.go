package flows

import (
	"strings"
	"time"

	"github.com/wokengineers/tezdm-authcore/credstore"
)

// ProfileTemplate carries the defaults used when a profile is synthesized
// from nothing but a verified email address.
type ProfileTemplate struct {
	// AvatarURLTemplate is expanded by replacing "{name}" with the
	// URL-safe display name. Empty means no avatar.
	AvatarURLTemplate string
	DefaultPlan       string
}

// SynthesizeProfile builds the initial profile after a successful OTP
// validation. The display name is the local part of the address.
func SynthesizeProfile(id, email string, now time.Time, tpl ProfileTemplate) *credstore.Profile {
	name := email
	if at := strings.Index(email, "@"); at > 0 {
		name = email[:at]
	}
	plan := tpl.DefaultPlan
	if plan == "" {
		plan = "free"
	}
	avatar := ""
	if tpl.AvatarURLTemplate != "" {
		avatar = strings.ReplaceAll(tpl.AvatarURLTemplate, "{name}", name)
	}
	return &credstore.Profile{
		ID:            id,
		Name:          name,
		Email:         email,
		AvatarURL:     avatar,
		Plan:          plan,
		NotifyByEmail: true,
		CreatedAt:     now.Unix(),
		LastLoginAt:   now.Unix(),
	}
}

// ProfileUpdate is a partial profile mutation; nil fields are left untouched.
type ProfileUpdate struct {
	Name              *string
	AvatarURL         *string
	Plan              *string
	NotifyByEmail     *bool
	ConnectedAccounts []credstore.ConnectedAccountSummary
}

// MergeProfile returns a copy of base with the update applied.
func MergeProfile(base *credstore.Profile, update ProfileUpdate) *credstore.Profile {
	merged := *base
	if update.Name != nil {
		merged.Name = *update.Name
	}
	if update.AvatarURL != nil {
		merged.AvatarURL = *update.AvatarURL
	}
	if update.Plan != nil {
		merged.Plan = *update.Plan
	}
	if update.NotifyByEmail != nil {
		merged.NotifyByEmail = *update.NotifyByEmail
	}
	if update.ConnectedAccounts != nil {
		merged.ConnectedAccounts = append([]credstore.ConnectedAccountSummary(nil), update.ConnectedAccounts...)
	}
	return &merged
}

// AppendConnectedAccount records a new connection on the profile, replacing
// any previous entry for the same platform.
func AppendConnectedAccount(base *credstore.Profile, account credstore.ConnectedAccountSummary) *credstore.Profile {
	merged := *base
	merged.ConnectedAccounts = nil
	for _, existing := range base.ConnectedAccounts {
		if existing.Platform != account.Platform {
			merged.ConnectedAccounts = append(merged.ConnectedAccounts, existing)
		}
	}
	merged.ConnectedAccounts = append(merged.ConnectedAccounts, account)
	return &merged
}
