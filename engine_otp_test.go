package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wokengineers/tezdm-authcore/gateway"
)

func TestGenerateOTPAdvancesToCodeStep(t *testing.T) {
	gw := &stubGateway{
		generateOTP: func(ctx context.Context, email string) error { return nil },
	}
	engine, _, done := newTestEngine(t, gw)
	defer done()

	if err := engine.GenerateOTP(context.Background(), "ada@example.com"); err != nil {
		t.Fatalf("GenerateOTP failed: %v", err)
	}

	snap := engine.Snapshot()
	if snap.Step != StepOTP {
		t.Fatalf("expected step otp, got %s", snap.Step)
	}
	if snap.Email != "ada@example.com" {
		t.Fatalf("expected email recorded, got %q", snap.Email)
	}
	if snap.LastError != "" {
		t.Fatalf("expected no error, got %q", snap.LastError)
	}
}

func TestGenerateOTPFailureRevertsToEmailStep(t *testing.T) {
	sendErr := errors.New("smtp backend down")
	gw := &stubGateway{
		generateOTP: func(ctx context.Context, email string) error { return sendErr },
	}
	engine, _, done := newTestEngine(t, gw)
	defer done()

	if err := engine.GenerateOTP(context.Background(), "ada@example.com"); !errors.Is(err, sendErr) {
		t.Fatalf("expected send error, got %v", err)
	}

	snap := engine.Snapshot()
	if snap.Step != StepEmail {
		t.Fatalf("expected step email, got %s", snap.Step)
	}
	if snap.LastError != sendErr.Error() {
		t.Fatalf("expected last error recorded, got %q", snap.LastError)
	}
}

func TestGenerateOTPRejectsInvalidEmailWithoutNetworkCall(t *testing.T) {
	called := false
	gw := &stubGateway{
		generateOTP: func(ctx context.Context, email string) error {
			called = true
			return nil
		},
	}
	engine, _, done := newTestEngine(t, gw)
	defer done()

	if err := engine.GenerateOTP(context.Background(), "not-an-email"); err == nil {
		t.Fatal("expected validation error")
	}
	if called {
		t.Fatal("expected no gateway call for invalid email")
	}
	if step := engine.Snapshot().Step; step != StepEmail {
		t.Fatalf("expected step email, got %s", step)
	}
}

func TestValidateOTPPersistsFirstGroupSession(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	var refreshedGroup string
	gw := &stubGateway{
		validateOTP: func(ctx context.Context, email, code string) (gateway.TokenPair, error) {
			return gateway.TokenPair{AccessToken: "initial-access", RefreshToken: "initial-refresh"}, nil
		},
		groups: func(ctx context.Context, accessToken string) ([]gateway.Group, error) {
			if accessToken != "initial-access" {
				t.Fatalf("groups listed with wrong token %q", accessToken)
			}
			return []gateway.Group{{ID: "g1", Name: "First"}, {ID: "g2", Name: "Second"}}, nil
		},
		refreshWithGroup: func(ctx context.Context, refreshToken, groupID string) (gateway.GroupTokens, error) {
			refreshedGroup = groupID
			return gateway.GroupTokens{
				AccessToken:  mintToken(t, exp),
				RefreshToken: "scoped-refresh",
				GroupID:      groupID,
			}, nil
		},
	}
	engine, store, done := newTestEngine(t, gw)
	defer done()

	if err := engine.ValidateOTP(context.Background(), "ada@example.com", "123456"); err != nil {
		t.Fatalf("ValidateOTP failed: %v", err)
	}
	if refreshedGroup != "g1" {
		t.Fatalf("expected refresh against first group, got %q", refreshedGroup)
	}

	snap := engine.Snapshot()
	if !snap.IsAuthenticated() || snap.Step != StepSuccess {
		t.Fatalf("expected authenticated success, got status=%s step=%s", snap.Status, snap.Step)
	}
	if snap.User == nil || snap.User.Email != "ada@example.com" {
		t.Fatal("expected synthesized profile on session")
	}

	ts, err := store.Tokens(context.Background())
	if err != nil {
		t.Fatalf("reading stored tokens failed: %v", err)
	}
	if ts == nil || ts.GroupID != "g1" || ts.RefreshToken != "scoped-refresh" {
		t.Fatalf("expected scoped token set stored, got %+v", ts)
	}
	if ts.ExpiresAt != exp.Unix() {
		t.Fatalf("expected expiry %d derived from token, got %d", exp.Unix(), ts.ExpiresAt)
	}
}

func TestValidateOTPNoGroupsLeavesStoreUntouched(t *testing.T) {
	gw := &stubGateway{
		validateOTP: func(ctx context.Context, email, code string) (gateway.TokenPair, error) {
			return gateway.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
		},
		groups: func(ctx context.Context, accessToken string) ([]gateway.Group, error) {
			return nil, nil
		},
	}
	engine, store, done := newTestEngine(t, gw)
	defer done()

	err := engine.ValidateOTP(context.Background(), "ada@example.com", "123456")
	if !errors.Is(err, ErrNoGroups) {
		t.Fatalf("expected ErrNoGroups, got %v", err)
	}

	snap := engine.Snapshot()
	if snap.Step != StepOTP {
		t.Fatalf("expected revert to otp step, got %s", snap.Step)
	}
	if snap.LastError != "No groups found for this user" {
		t.Fatalf("unexpected last error %q", snap.LastError)
	}
	if snap.IsAuthenticated() {
		t.Fatal("expected session to stay anonymous")
	}

	ts, err := store.Tokens(context.Background())
	if err != nil || ts != nil {
		t.Fatalf("expected no stored tokens, got %+v err=%v", ts, err)
	}
}

func TestValidateOTPExchangeFailureRevertsToCodeStep(t *testing.T) {
	gw := &stubGateway{
		validateOTP: func(ctx context.Context, email, code string) (gateway.TokenPair, error) {
			return gateway.TokenPair{}, &gateway.StatusError{Status: 400, Message: "invalid otp"}
		},
	}
	engine, _, done := newTestEngine(t, gw)
	defer done()

	if err := engine.ValidateOTP(context.Background(), "ada@example.com", "000000"); err == nil {
		t.Fatal("expected exchange error")
	}
	if step := engine.Snapshot().Step; step != StepOTP {
		t.Fatalf("expected step otp for retry, got %s", step)
	}
}

func TestValidateOTPRejectsWrongCodeLength(t *testing.T) {
	gw := &stubGateway{}
	engine, _, done := newTestEngine(t, gw)
	defer done()

	if err := engine.ValidateOTP(context.Background(), "ada@example.com", "123"); err == nil {
		t.Fatal("expected validation error for short code")
	}
	if step := engine.Snapshot().Step; step != StepOTP {
		t.Fatalf("expected step otp, got %s", step)
	}
}

func TestValidateOTPUnexpiringTokenRejected(t *testing.T) {
	gw := &stubGateway{
		validateOTP: func(ctx context.Context, email, code string) (gateway.TokenPair, error) {
			return gateway.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
		},
		groups: func(ctx context.Context, accessToken string) ([]gateway.Group, error) {
			return []gateway.Group{{ID: "g1"}}, nil
		},
		refreshWithGroup: func(ctx context.Context, refreshToken, groupID string) (gateway.GroupTokens, error) {
			return gateway.GroupTokens{AccessToken: "not-a-jwt", RefreshToken: "r2", GroupID: groupID}, nil
		},
	}
	engine, store, done := newTestEngine(t, gw)
	defer done()

	if err := engine.ValidateOTP(context.Background(), "ada@example.com", "123456"); err == nil {
		t.Fatal("expected expiry derivation error")
	}
	ts, err := store.Tokens(context.Background())
	if err != nil || ts != nil {
		t.Fatalf("expected nothing persisted, got %+v err=%v", ts, err)
	}
}
