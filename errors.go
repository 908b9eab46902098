package authcore

import (
	"errors"

	"github.com/wokengineers/tezdm-authcore/credstore"
	"github.com/wokengineers/tezdm-authcore/gateway"
	"github.com/wokengineers/tezdm-authcore/internal/flows"
	"github.com/wokengineers/tezdm-authcore/token"
)

var (
	// ErrEngineNotReady is returned when an Engine is used before Build completed.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrEngineClosed is returned by operations invoked after Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrMissingStateToken rejects OAuth URLs without a state query parameter.
	ErrMissingStateToken = errors.New("oauth url missing state parameter")

	// ErrNoGroups is the protocol failure for accounts with an empty group list.
	ErrNoGroups = flows.ErrNoGroups
	// ErrMissingParameter is the redirect failure for an absent code or state.
	ErrMissingParameter = flows.ErrMissingParameter
	// ErrMalformedState is the redirect failure for an undecodable state parameter.
	ErrMalformedState = flows.ErrMalformedState
	// ErrInvalidToken marks an access token whose expiry cannot be derived.
	ErrInvalidToken = token.ErrExpiryUnderivable
	// ErrCredentialsCorrupt marks stored credentials that fail integrity validation.
	ErrCredentialsCorrupt = credstore.ErrCredentialsCorrupt
	// ErrGatewayUnavailable wraps transport failures reaching the gateway.
	ErrGatewayUnavailable = gateway.ErrUnreachable
)
