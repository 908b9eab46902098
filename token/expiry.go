// Package token derives token metadata from gateway-issued access tokens.
//
// The gateway signs its tokens with a key this client never holds, so claims
// are read without signature verification. Expiry derivation is the only
// contract: a token whose exp claim cannot be read is rejected before it is
// ever persisted.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpiryUnderivable is returned when an access token is not a JWT or
// carries no usable exp claim.
var ErrExpiryUnderivable = errors.New("token expiry underivable")

// Expiry returns the exp claim of an access token. The signature is not
// checked; only structural validity and the presence of exp matter here.
func Expiry(accessToken string) (time.Time, error) {
	if accessToken == "" {
		return time.Time{}, ErrExpiryUnderivable
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, ErrExpiryUnderivable
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.IsZero() {
		return time.Time{}, ErrExpiryUnderivable
	}
	return claims.ExpiresAt.Time, nil
}

// Expired reports whether the token's derived expiry is at or before now.
// Underivable tokens are treated as expired.
func Expired(accessToken string, now time.Time) bool {
	exp, err := Expiry(accessToken)
	if err != nil {
		return true
	}
	return !exp.After(now)
}
