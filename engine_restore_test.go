package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/wokengineers/tezdm-authcore/credstore"
	"github.com/wokengineers/tezdm-authcore/gateway"
)

func TestBuildRestoresStoredSession(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()
	store := newSeededStore(t, rdb)

	engine, err := New().WithCredentialStore(store).WithGateway(&stubGateway{}).WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	snap := engine.Snapshot()
	if !snap.IsAuthenticated() || snap.Step != StepSuccess {
		t.Fatalf("expected restored authenticated session, got status=%s step=%s", snap.Status, snap.Step)
	}
	if snap.User == nil || snap.User.ID != "user-1" {
		t.Fatalf("expected stored profile restored, got %+v", snap.User)
	}
	if got := engine.MetricsSnapshot().Counters[MetricSessionRestored]; got != 1 {
		t.Fatalf("expected one session restore recorded, got %d", got)
	}
}

func TestBuildIgnoresExpiredSession(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()
	store := credstore.NewStore(rdb, "tzc")
	seedStoredSession(t, store, time.Now().Add(-time.Hour))

	engine, err := New().WithCredentialStore(store).WithGateway(&stubGateway{}).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	snap := engine.Snapshot()
	if snap.IsAuthenticated() || snap.Step != StepEmail {
		t.Fatalf("expected anonymous start for expired credentials, got status=%s step=%s", snap.Status, snap.Step)
	}
}

func TestBuildWipesInconsistentCredentials(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()
	store := credstore.NewStore(rdb, "tzc")

	// Profile without tokens fails the integrity pass.
	if err := store.StoreUser(context.Background(), &Profile{ID: "user-1", Email: "ada@example.com", Plan: "free"}); err != nil {
		t.Fatalf("seeding profile failed: %v", err)
	}

	engine, err := New().WithCredentialStore(store).WithGateway(&stubGateway{}).WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if engine.Snapshot().IsAuthenticated() {
		t.Fatal("expected anonymous session after wipe")
	}
	stored, err := store.User(context.Background())
	if err != nil || stored != nil {
		t.Fatalf("expected wiped store, got %+v err=%v", stored, err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricIntegrityWipe]; got != 1 {
		t.Fatalf("expected one integrity wipe recorded, got %d", got)
	}
}

func TestBuildWipesCorruptTokenRecord(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()
	if err := mr.Set("tzc:tokens", "{not json"); err != nil {
		t.Fatalf("seeding corrupt record failed: %v", err)
	}

	store := credstore.NewStore(rdb, "tzc")
	engine, err := New().WithCredentialStore(store).WithGateway(&stubGateway{}).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if mr.Exists("tzc:tokens") {
		t.Fatal("expected corrupt token record wiped")
	}
}

func TestGlobalLogoutSignalForcesReset(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()
	store := newSeededStore(t, rdb)

	signal := make(chan struct{})
	engine, err := New().
		WithCredentialStore(store).
		WithGateway(&stubGateway{}).
		WithGlobalLogout(signal).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if !engine.Snapshot().IsAuthenticated() {
		t.Fatal("expected restored session before signal")
	}

	signal <- struct{}{}

	waitFor(t, 2*time.Second, func() bool {
		return !engine.Snapshot().IsAuthenticated()
	}, "session never reset after global logout signal")

	snap := engine.Snapshot()
	if snap.Step != StepEmail {
		t.Fatalf("expected email step after reset, got %s", snap.Step)
	}

	waitFor(t, 2*time.Second, func() bool {
		ts, err := store.Tokens(context.Background())
		return err == nil && ts == nil
	}, "credentials never cleared after global logout")

	if got := engine.MetricsSnapshot().Counters[MetricGlobalLogout]; got != 1 {
		t.Fatalf("expected one global logout recorded, got %d", got)
	}
}

func TestGlobalLogoutInvalidatesInflightLogin(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()
	store := credstore.NewStore(rdb, "tzc")

	release := make(chan struct{})
	entered := make(chan struct{})
	gw := &stubGateway{
		generateOTP: func(ctx context.Context, email string) error {
			close(entered)
			<-release
			return nil
		},
	}

	signal := make(chan struct{})
	engine, err := New().
		WithCredentialStore(store).
		WithGateway(gw).
		WithGlobalLogout(signal).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	errc := make(chan error, 1)
	go func() {
		errc <- engine.GenerateOTP(context.Background(), "ada@example.com")
	}()

	<-entered
	// The reset must land while the gateway call is still blocked.
	signal <- struct{}{}
	waitFor(t, 2*time.Second, func() bool {
		return engine.Snapshot().Step == StepEmail
	}, "reset never applied while call was in flight")

	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("GenerateOTP failed: %v", err)
	}

	// The stale completion must not advance the step past the reset.
	if step := engine.Snapshot().Step; step != StepEmail {
		t.Fatalf("expected stale completion discarded, step=%s", step)
	}
}

func TestGlobalLogoutDiscardsRacingLoginPersist(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()
	store := credstore.NewStore(rdb, "tzc")

	release := make(chan struct{})
	entered := make(chan struct{})
	access := mintToken(t, time.Now().Add(time.Hour))
	gw := &stubGateway{
		validateOTP: func(ctx context.Context, email, code string) (gateway.TokenPair, error) {
			return gateway.TokenPair{AccessToken: "initial-access", RefreshToken: "initial-refresh"}, nil
		},
		groups: func(ctx context.Context, accessToken string) ([]gateway.Group, error) {
			return []gateway.Group{{ID: "g1", Name: "Team"}}, nil
		},
		refreshWithGroup: func(ctx context.Context, refreshToken, groupID string) (gateway.GroupTokens, error) {
			close(entered)
			<-release
			return gateway.GroupTokens{AccessToken: access, RefreshToken: "scoped-refresh"}, nil
		},
	}

	signal := make(chan struct{})
	engine, err := New().
		WithCredentialStore(store).
		WithGateway(gw).
		WithGlobalLogout(signal).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	errc := make(chan error, 1)
	go func() {
		errc <- engine.ValidateOTP(context.Background(), "ada@example.com", "123456")
	}()

	<-entered
	// The wipe lands while the sequence is suspended before its persist.
	signal <- struct{}{}
	waitFor(t, 2*time.Second, func() bool {
		ts, err := store.Tokens(context.Background())
		return err == nil && ts == nil
	}, "credentials never cleared after global logout")

	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("ValidateOTP failed: %v", err)
	}

	// The reset must stick: neither the in-memory session nor the store may
	// carry the superseded login.
	if engine.Snapshot().IsAuthenticated() {
		t.Fatal("expected session to stay anonymous after the reset")
	}
	ts, err := store.Tokens(context.Background())
	if err != nil || ts != nil {
		t.Fatalf("expected no stored tokens after the reset, got %+v err=%v", ts, err)
	}
	profile, err := store.User(context.Background())
	if err != nil || profile != nil {
		t.Fatalf("expected no stored profile after the reset, got %+v err=%v", profile, err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
