package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrStoreUnavailable wraps backend transport failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrCredentialsCorrupt is returned when a stored record fails to decode.
	ErrCredentialsCorrupt = errors.New("stored credentials corrupt")
	// ErrTokenSetIncomplete rejects token sets missing a field or a derived expiry.
	ErrTokenSetIncomplete = errors.New("token set incomplete")
)

// Store is the redis-backed credential store. One instance serves one logical
// client session; the prefix isolates independent sessions sharing a backend.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "tzc"
	}
	return &Store{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *Store) tokensKey() string { return s.prefix + ":tokens" }
func (s *Store) userKey() string   { return s.prefix + ":user" }

func checkTokenSet(ts *TokenSet) error {
	if ts == nil || ts.AccessToken == "" || ts.RefreshToken == "" || ts.GroupID == "" || ts.ExpiresAt <= 0 {
		return ErrTokenSetIncomplete
	}
	return nil
}

// Tokens returns the stored token set, or nil when none is stored.
func (s *Store) Tokens(ctx context.Context) (*TokenSet, error) {
	data, err := s.redis.Get(ctx, s.tokensKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	ts, err := decodeTokenSet(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsCorrupt, err)
	}
	return ts, nil
}

// User returns the stored profile, or nil when none is stored.
func (s *Store) User(ctx context.Context) (*Profile, error) {
	data, err := s.redis.Get(ctx, s.userKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	profile := &Profile{}
	if err := json.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsCorrupt, err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: profile missing id", ErrCredentialsCorrupt)
	}
	return profile, nil
}

// StoreTokens persists a complete token set.
func (s *Store) StoreTokens(ctx context.Context, ts *TokenSet) error {
	if err := checkTokenSet(ts); err != nil {
		return err
	}
	encoded, err := encodeTokenSet(ts)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.tokensKey(), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// StoreUser persists the profile.
func (s *Store) StoreUser(ctx context.Context, profile *Profile) error {
	if profile == nil || profile.ID == "" {
		return errors.New("profile missing id")
	}
	encoded, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.userKey(), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// StoreSession commits profile and tokens in one transaction. The login flow
// relies on this: a half-written session (tokens without profile, or the
// reverse) must never be observable.
func (s *Store) StoreSession(ctx context.Context, profile *Profile, ts *TokenSet) error {
	if profile == nil || profile.ID == "" {
		return errors.New("profile missing id")
	}
	if err := checkTokenSet(ts); err != nil {
		return err
	}
	encodedTokens, err := encodeTokenSet(ts)
	if err != nil {
		return err
	}
	encodedProfile, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.userKey(), encodedProfile, 0)
		pipe.Set(ctx, s.tokensKey(), encodedTokens, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsAuthenticated reports whether a live (unexpired) token set is stored.
func (s *Store) IsAuthenticated(ctx context.Context) (bool, error) {
	ts, err := s.Tokens(ctx)
	if err != nil {
		if errors.Is(err, ErrCredentialsCorrupt) {
			return false, nil
		}
		return false, err
	}
	if ts == nil {
		return false, nil
	}
	return ts.ExpiresAt > s.now().Unix(), nil
}

// Validate runs the full integrity pass over everything stored. A backend
// failure is returned as an error; corrupt or inconsistent records land in
// the report instead, so the caller can wipe and move on.
func (s *Store) Validate(ctx context.Context) (Report, error) {
	report := Report{Valid: true}

	ts, err := s.Tokens(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrCredentialsCorrupt):
		report.Valid = false
		report.Errors = append(report.Errors, "token record corrupt")
		ts = nil
	default:
		return Report{}, err
	}

	profile, err := s.User(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrCredentialsCorrupt):
		report.Valid = false
		report.Errors = append(report.Errors, "profile record corrupt")
		profile = nil
	default:
		return Report{}, err
	}

	if ts != nil {
		if err := checkTokenSet(ts); err != nil {
			report.Valid = false
			report.Errors = append(report.Errors, "token record incomplete")
		}
		if profile == nil {
			report.Valid = false
			report.Errors = append(report.Errors, "tokens stored without profile")
		}
	}
	if profile != nil && ts == nil {
		report.Valid = false
		report.Errors = append(report.Errors, "profile stored without tokens")
	}

	return report, nil
}

// Clear removes everything. Deleting an already-empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.tokensKey(), s.userKey()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
