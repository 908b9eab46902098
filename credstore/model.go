package credstore

// TokenSet is the persisted credential record for one authenticated group
// session. ExpiresAt is derived from the access token before storage; a token
// set that reaches the store without a positive expiry is rejected.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	GroupID      string
	ExpiresAt    int64 // unix seconds
}

// ConnectedAccountSummary is the per-platform connection digest mirrored into
// the stored profile.
type ConnectedAccountSummary struct {
	Platform string `json:"platform"`
	Handle   string `json:"handle,omitempty"`
}

// Profile is the stored user profile.
type Profile struct {
	ID                string                    `json:"id"`
	Name              string                    `json:"name"`
	Email             string                    `json:"email"`
	AvatarURL         string                    `json:"avatar_url,omitempty"`
	Plan              string                    `json:"plan"`
	NotifyByEmail     bool                      `json:"notify_by_email"`
	ConnectedAccounts []ConnectedAccountSummary `json:"connected_accounts,omitempty"`
	CreatedAt         int64                     `json:"created_at"`
	LastLoginAt       int64                     `json:"last_login_at"`
}

// Report is the result of a full integrity validation pass.
type Report struct {
	Valid  bool
	Errors []string
}
