package flows

import (
	"errors"
	"strings"
)

// Validation errors are pre-network failures; their text is what the session
// surfaces to the user verbatim.
var (
	ErrEmailInvalid    = errors.New("enter a valid email address")
	ErrCodeInvalid     = errors.New("enter the one-time passcode you received")
	ErrPasswordInvalid = errors.New("password must be at least 8 characters")
	ErrNameInvalid     = errors.New("enter your name")
)

// ValidateEmail performs the shape check done before any network call. The
// gateway remains the authority on whether the address exists.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || strings.ContainsAny(email, " \t") {
		return ErrEmailInvalid
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrEmailInvalid
	}
	return nil
}

// ValidateOTPCode checks the passcode is exactly length digits.
func ValidateOTPCode(code string, length int) error {
	if len(code) != length {
		return ErrCodeInvalid
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return ErrCodeInvalid
		}
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordInvalid
	}
	return nil
}

func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameInvalid
	}
	return nil
}
