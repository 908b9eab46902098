package flows

import (
	"context"
	"errors"
	"testing"
)

func TestParseStateToken(t *testing.T) {
	parts, err := ParseStateToken("g1_instagram")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parts.GroupID != "g1" || parts.PlatformID != "instagram" {
		t.Fatalf("parts = %+v", parts)
	}

	// Platform identifiers may carry underscores; only the first delimits.
	parts, err = ParseStateToken("g1_insta_business")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parts.GroupID != "g1" || parts.PlatformID != "insta_business" {
		t.Fatalf("parts = %+v", parts)
	}
}

func TestParseStateTokenMalformed(t *testing.T) {
	for _, state := range []string{"", "nodelimiter", "_platform", "group_", "_"} {
		if _, err := ParseStateToken(state); !errors.Is(err, ErrMalformedState) {
			t.Errorf("ParseStateToken(%q) = %v, want ErrMalformedState", state, err)
		}
	}
}

func TestRunResolveRedirectMalformedStateSkipsExchange(t *testing.T) {
	exchanged := false
	deps := RedirectDeps{
		Exchange: func(context.Context, string, string) (ConnectionRecord, error) {
			exchanged = true
			return ConnectionRecord{}, nil
		},
	}

	for _, state := range []string{"", "bogus", "_x", "x_"} {
		result := RunResolveRedirect(context.Background(), "code-1", state, deps)
		want := RedirectFailureMalformedState
		if state == "" {
			want = RedirectFailureMissingParameter
		}
		if result.Failure != want {
			t.Errorf("state %q: failure = %v, want %v", state, result.Failure, want)
		}
	}
	if exchanged {
		t.Fatal("malformed state must never reach the gateway")
	}
}

func TestRunResolveRedirectMissingCode(t *testing.T) {
	result := RunResolveRedirect(context.Background(), "", "g1_instagram", RedirectDeps{})
	if result.Failure != RedirectFailureMissingParameter {
		t.Fatalf("failure = %v", result.Failure)
	}
	if !errors.Is(result.Err, ErrMissingParameter) {
		t.Fatalf("err = %v", result.Err)
	}
}

func TestRunResolveRedirectSuccess(t *testing.T) {
	deps := RedirectDeps{
		Exchange: func(_ context.Context, code, state string) (ConnectionRecord, error) {
			if code != "code-1" || state != "g1_instagram" {
				t.Errorf("exchange called with %q %q", code, state)
			}
			return ConnectionRecord{Handle: "@alice"}, nil
		},
	}

	result := RunResolveRedirect(context.Background(), "code-1", "g1_instagram", deps)
	if result.Failure != RedirectFailureNone {
		t.Fatalf("failure = %v, err = %v", result.Failure, result.Err)
	}
	// Gaps in the gateway record are filled from the state token.
	if result.Record.Platform != "instagram" || result.Record.GroupID != "g1" {
		t.Fatalf("record = %+v", result.Record)
	}
	if result.Record.Handle != "@alice" {
		t.Fatalf("handle = %q", result.Record.Handle)
	}
}

func TestRunResolveRedirectExchangeFailure(t *testing.T) {
	exchangeErr := errors.New("code already used")
	deps := RedirectDeps{
		Exchange: func(context.Context, string, string) (ConnectionRecord, error) {
			return ConnectionRecord{}, exchangeErr
		},
	}

	result := RunResolveRedirect(context.Background(), "code-1", "g1_instagram", deps)
	if result.Failure != RedirectFailureExchange || !errors.Is(result.Err, exchangeErr) {
		t.Fatalf("failure = %v, err = %v", result.Failure, result.Err)
	}
	if result.PlatformID != "instagram" {
		t.Fatalf("platform id = %q", result.PlatformID)
	}
}
