package flows

import (
	"context"

	"github.com/wokengineers/tezdm-authcore/credstore"
)

// SignoutDeps captures signout dependencies.
type SignoutDeps struct {
	Tokens        func(ctx context.Context) (*credstore.TokenSet, error)
	RemoteSignout func(ctx context.Context, refresh, groupID string) error
	Clear         func(ctx context.Context) error
	Warn          func(format string, args ...any)
}

// SignoutResult records what happened on each side. RemoteErr is
// informational only; the flow has already decided to clear locally.
type SignoutResult struct {
	RemoteAttempted bool
	RemoteErr       error
	ClearErr        error
}

// RunSignout terminates the session. The remote call is best-effort: a user
// asking to leave must never be trapped by an unreachable backend, so local
// state is cleared no matter what the gateway says. Running with no stored
// tokens is a supported no-op on the remote side.
func RunSignout(ctx context.Context, deps SignoutDeps) SignoutResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	result := SignoutResult{}

	tokens, err := deps.Tokens(ctx)
	if err != nil {
		deps.Warn("signout: reading stored tokens failed: %v", err)
	}
	if tokens != nil {
		result.RemoteAttempted = true
		if err := deps.RemoteSignout(ctx, tokens.RefreshToken, tokens.GroupID); err != nil {
			result.RemoteErr = err
			deps.Warn("signout: remote termination failed, clearing locally anyway: %v", err)
		}
	}

	result.ClearErr = deps.Clear(ctx)
	return result
}
