package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/wokengineers/tezdm-authcore/credstore"
	"github.com/wokengineers/tezdm-authcore/gateway"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// stubGateway implements Gateway with per-method hooks. Unset hooks fail the
// call so a test only exercises the paths it wires.
type stubGateway struct {
	generateOTP      func(ctx context.Context, email string) error
	validateOTP      func(ctx context.Context, email, code string) (gateway.TokenPair, error)
	groups           func(ctx context.Context, accessToken string) ([]gateway.Group, error)
	refreshWithGroup func(ctx context.Context, refreshToken, groupID string) (gateway.GroupTokens, error)
	signout          func(ctx context.Context, refreshToken, groupID string) error
	login            func(ctx context.Context, email, password string) (gateway.LoginPayload, error)
	signup           func(ctx context.Context, name, email, password string) (gateway.LoginPayload, error)
	oauthStatus      func(ctx context.Context, stateToken string) (gateway.OAuthState, error)
	completeRedirect func(ctx context.Context, code, state string) (gateway.ConnectedAccount, error)
}

var errStubNotWired = errors.New("stub method not wired")

func (s *stubGateway) GenerateOTP(ctx context.Context, email string) error {
	if s.generateOTP == nil {
		return errStubNotWired
	}
	return s.generateOTP(ctx, email)
}

func (s *stubGateway) ValidateOTP(ctx context.Context, email, code string) (gateway.TokenPair, error) {
	if s.validateOTP == nil {
		return gateway.TokenPair{}, errStubNotWired
	}
	return s.validateOTP(ctx, email, code)
}

func (s *stubGateway) Groups(ctx context.Context, accessToken string) ([]gateway.Group, error) {
	if s.groups == nil {
		return nil, errStubNotWired
	}
	return s.groups(ctx, accessToken)
}

func (s *stubGateway) RefreshWithGroup(ctx context.Context, refreshToken, groupID string) (gateway.GroupTokens, error) {
	if s.refreshWithGroup == nil {
		return gateway.GroupTokens{}, errStubNotWired
	}
	return s.refreshWithGroup(ctx, refreshToken, groupID)
}

func (s *stubGateway) Signout(ctx context.Context, refreshToken, groupID string) error {
	if s.signout == nil {
		return errStubNotWired
	}
	return s.signout(ctx, refreshToken, groupID)
}

func (s *stubGateway) Login(ctx context.Context, email, password string) (gateway.LoginPayload, error) {
	if s.login == nil {
		return gateway.LoginPayload{}, errStubNotWired
	}
	return s.login(ctx, email, password)
}

func (s *stubGateway) Signup(ctx context.Context, name, email, password string) (gateway.LoginPayload, error) {
	if s.signup == nil {
		return gateway.LoginPayload{}, errStubNotWired
	}
	return s.signup(ctx, name, email, password)
}

func (s *stubGateway) OAuthStatus(ctx context.Context, stateToken string) (gateway.OAuthState, error) {
	if s.oauthStatus == nil {
		return gateway.OAuthPending, errStubNotWired
	}
	return s.oauthStatus(ctx, stateToken)
}

func (s *stubGateway) CompleteOAuthRedirect(ctx context.Context, code, state string) (gateway.ConnectedAccount, error) {
	if s.completeRedirect == nil {
		return gateway.ConnectedAccount{}, errStubNotWired
	}
	return s.completeRedirect(ctx, code, state)
}

// mintToken produces a signed JWT carrying the given expiry, matching the
// token shape the gateway returns.
func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token failed: %v", err)
	}
	return signed
}

func newTestEngine(t *testing.T, gw Gateway) (*Engine, *credstore.Store, func()) {
	t.Helper()
	return newTestEngineWithConfig(t, gw, defaultConfig())
}

func newTestEngineWithConfig(t *testing.T, gw Gateway, cfg Config) (*Engine, *credstore.Store, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	store := credstore.NewStore(rdb, "tzc")

	engine, err := New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithGateway(gw).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, store, func() {
		engine.Close()
		mr.Close()
	}
}

// newSeededStore returns a store already holding a live session, for tests
// that start authenticated.
func newSeededStore(t *testing.T, rdb *redis.Client) *credstore.Store {
	t.Helper()

	store := credstore.NewStore(rdb, "tzc")
	seedStoredSession(t, store, time.Now().Add(time.Hour))
	return store
}

func seedStoredSession(t *testing.T, store *credstore.Store, exp time.Time) *Profile {
	t.Helper()

	profile := &Profile{
		ID:    "user-1",
		Name:  "Ada",
		Email: "ada@example.com",
		Plan:  "free",
	}
	tokens := &TokenSet{
		AccessToken:  mintToken(t, exp),
		RefreshToken: "refresh-1",
		GroupID:      "g1",
		ExpiresAt:    exp.Unix(),
	}
	if err := store.StoreSession(context.Background(), profile, tokens); err != nil {
		t.Fatalf("seeding session failed: %v", err)
	}
	return profile
}
