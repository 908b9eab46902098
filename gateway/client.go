// Package gateway is the HTTP client for the remote auth gateway. It covers
// the login sequence calls (OTP generation/validation, group listing,
// group-scoped refresh, signout), the legacy password paths, and the OAuth
// connection endpoints the poller and redirect resolver depend on.
//
// Only the response fields the session engine consumes are modeled; the rest
// of the gateway's wire surface is deliberately ignored.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OAuthState is the connection status reported by the gateway for a pending
// out-of-band authorization.
type OAuthState string

const (
	// OAuthPending means the user has not completed the authorization yet.
	OAuthPending OAuthState = "pending"
	// OAuthTokenAvailable means the authorization finished and a token was issued.
	OAuthTokenAvailable OAuthState = "token_available"
)

// TokenPair is the initial credential pair issued by OTP validation. It is
// not yet group-scoped and must never be persisted as-is.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// GroupTokens is the final, group-scoped credential set.
type GroupTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	GroupID      string `json:"group_id"`
}

// Group is one account group the credentials can be scoped to.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// AccountPayload is the profile shape returned by the legacy login/signup paths.
type AccountPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Plan      string `json:"plan,omitempty"`
}

// LoginPayload is the single-round-trip response of the legacy paths.
type LoginPayload struct {
	GroupTokens
	User AccountPayload `json:"user"`
}

// ConnectedAccount is the finalized connection record returned by the OAuth
// completion endpoint.
type ConnectedAccount struct {
	Platform string `json:"platform"`
	Handle   string `json:"handle,omitempty"`
	GroupID  string `json:"group_id,omitempty"`
}

// StatusError reports a non-2xx gateway response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("gateway returned %d", e.Status)
}

// ErrUnreachable wraps transport-level failures (DNS, refused, timeout).
var ErrUnreachable = errors.New("gateway unreachable")

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger

	// HTTPClient overrides the default client; used by tests.
	HTTPClient *http.Client
}

// Client talks to one gateway. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	logout  chan struct{}
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("gateway base URL required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid gateway base URL: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL: base,
		http:    httpClient,
		logger:  logger,
		logout:  make(chan struct{}, 1),
	}, nil
}

// GlobalLogout signals when the gateway invalidates the session out-of-band
// (a silent refresh was rejected). The channel never closes; it carries at
// most one pending signal.
func (c *Client) GlobalLogout() <-chan struct{} {
	return c.logout
}

func (c *Client) signalGlobalLogout() {
	select {
	case c.logout <- struct{}{}:
	default:
	}
}

// GenerateOTP asks the gateway to send a one-time passcode to the address.
func (c *Client) GenerateOTP(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.doJSON(ctx, http.MethodPost, "/auth/otp/generate", "", body, nil)
}

// ValidateOTP exchanges the passcode for an initial, group-unscoped pair.
func (c *Client) ValidateOTP(ctx context.Context, email, code string) (TokenPair, error) {
	body := map[string]string{"email": email, "otp": code}
	var pair TokenPair
	if err := c.doJSON(ctx, http.MethodPost, "/auth/otp/validate", "", body, &pair); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Groups lists the groups the authenticated account belongs to.
func (c *Client) Groups(ctx context.Context, accessToken string) ([]Group, error) {
	var out struct {
		Groups []Group `json:"groups"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/auth/groups", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// RefreshWithGroup exchanges the refresh token for a group-scoped set. A 401
// means the gateway no longer honors this session; the global logout channel
// is signalled so the engine can reset without waiting on the caller.
func (c *Client) RefreshWithGroup(ctx context.Context, refreshToken, groupID string) (GroupTokens, error) {
	body := map[string]string{"refresh_token": refreshToken, "group_id": groupID}
	var out GroupTokens
	err := c.doJSON(ctx, http.MethodPost, "/auth/token/refresh", "", body, &out)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusUnauthorized {
			c.logger.Warn("silent refresh rejected, signalling global logout")
			c.signalGlobalLogout()
		}
		return GroupTokens{}, err
	}
	if out.GroupID == "" {
		out.GroupID = groupID
	}
	return out, nil
}

// Signout terminates the remote session.
func (c *Client) Signout(ctx context.Context, refreshToken, groupID string) error {
	body := map[string]string{"refresh_token": refreshToken, "group_id": groupID}
	return c.doJSON(ctx, http.MethodPost, "/auth/signout", "", body, nil)
}

// Login is the legacy single-round-trip password path.
func (c *Client) Login(ctx context.Context, email, password string) (LoginPayload, error) {
	body := map[string]string{"email": email, "password": password}
	var out LoginPayload
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", body, &out); err != nil {
		return LoginPayload{}, err
	}
	return out, nil
}

// Signup is the legacy single-round-trip registration path.
func (c *Client) Signup(ctx context.Context, name, email, password string) (LoginPayload, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	var out LoginPayload
	if err := c.doJSON(ctx, http.MethodPost, "/auth/signup", "", body, &out); err != nil {
		return LoginPayload{}, err
	}
	return out, nil
}

// OAuthStatus queries the pending-authorization state for a state token.
func (c *Client) OAuthStatus(ctx context.Context, stateToken string) (OAuthState, error) {
	path := "/oauth/status?state=" + url.QueryEscape(stateToken)
	var out struct {
		State OAuthState `json:"state"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return "", err
	}
	return out.State, nil
}

// CompleteOAuthRedirect exchanges an authorization code + state for the
// finalized connection record.
func (c *Client) CompleteOAuthRedirect(ctx context.Context, code, state string) (ConnectedAccount, error) {
	body := map[string]string{"code": code, "state": state}
	var out ConnectedAccount
	if err := c.doJSON(ctx, http.MethodPost, "/oauth/complete", "", body, &out); err != nil {
		return ConnectedAccount{}, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("gateway request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Status: resp.StatusCode}
		var envelope struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			statusErr.Message = envelope.Message
			if statusErr.Message == "" {
				statusErr.Message = envelope.Error
			}
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed gateway response: %w", err)
	}
	return nil
}
