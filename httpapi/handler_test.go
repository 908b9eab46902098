package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/wokengineers/tezdm-authcore"
	"github.com/wokengineers/tezdm-authcore/credstore"
	"github.com/wokengineers/tezdm-authcore/gateway"
)

// fakeGateway satisfies authcore.Gateway for handler tests; only the redirect
// exchange is interesting here.
type fakeGateway struct {
	completeRedirect func(ctx context.Context, code, state string) (gateway.ConnectedAccount, error)
}

func (f *fakeGateway) GenerateOTP(context.Context, string) error { return nil }
func (f *fakeGateway) ValidateOTP(context.Context, string, string) (gateway.TokenPair, error) {
	return gateway.TokenPair{}, nil
}
func (f *fakeGateway) Groups(context.Context, string) ([]gateway.Group, error) { return nil, nil }
func (f *fakeGateway) RefreshWithGroup(context.Context, string, string) (gateway.GroupTokens, error) {
	return gateway.GroupTokens{}, nil
}
func (f *fakeGateway) Signout(context.Context, string, string) error { return nil }
func (f *fakeGateway) Login(context.Context, string, string) (gateway.LoginPayload, error) {
	return gateway.LoginPayload{}, nil
}
func (f *fakeGateway) Signup(context.Context, string, string, string) (gateway.LoginPayload, error) {
	return gateway.LoginPayload{}, nil
}
func (f *fakeGateway) OAuthStatus(context.Context, string) (gateway.OAuthState, error) {
	return gateway.OAuthPending, nil
}
func (f *fakeGateway) CompleteOAuthRedirect(ctx context.Context, code, state string) (gateway.ConnectedAccount, error) {
	if f.completeRedirect == nil {
		return gateway.ConnectedAccount{}, nil
	}
	return f.completeRedirect(ctx, code, state)
}

func newTestRouter(t *testing.T, gw authcore.Gateway) http.Handler {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := credstore.NewStore(client, "tzc")

	engine, err := authcore.New().
		WithCredentialStore(store).
		WithGateway(gw).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return NewHandler(engine, nil).Router()
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSessionEndpointReportsAnonymous(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body failed: %v", err)
	}
	if body.Status != "anonymous" || body.Step != "email" {
		t.Fatalf("unexpected session body %+v", body)
	}
}

func TestOAuthRedirectEndpointResolves(t *testing.T) {
	gw := &fakeGateway{
		completeRedirect: func(ctx context.Context, code, state string) (gateway.ConnectedAccount, error) {
			return gateway.ConnectedAccount{Platform: "instagram", Handle: "@ada", GroupID: "g1"}, nil
		},
	}
	router := newTestRouter(t, gw)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/redirect?code=abc&state=g1_instagram", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body redirectResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body failed: %v", err)
	}
	if body.Platform != "instagram" || body.GroupID != "g1" {
		t.Fatalf("unexpected redirect body %+v", body)
	}
	if body.Target != "login" {
		t.Fatalf("expected login target without a session, got %q", body.Target)
	}
}

func TestOAuthRedirectEndpointRejectsBadState(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/redirect?code=abc&state=nostate", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestConnectStatusEndpointIdle(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/connect/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body connectStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body failed: %v", err)
	}
	if body.Active {
		t.Fatal("expected no active connection")
	}
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	gw := &fakeGateway{
		completeRedirect: func(ctx context.Context, code, state string) (gateway.ConnectedAccount, error) {
			return gateway.ConnectedAccount{Platform: "instagram", GroupID: "g1"}, nil
		},
	}
	router := newTestRouter(t, gw)

	// Drive one counted operation so the exposition is non-empty.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/redirect?code=abc&state=g1_instagram", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("redirect setup failed with %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "authcore_redirect_success_total 1") {
		t.Fatalf("expected redirect counter in exposition, got:\n%s", rec.Body.String())
	}
}
