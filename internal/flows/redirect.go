package flows

import (
	"context"
	"errors"
	"strings"
)

// RedirectFailureKind classifies redirect resolution failures.
type RedirectFailureKind int

const (
	RedirectFailureNone RedirectFailureKind = iota
	RedirectFailureMissingParameter
	RedirectFailureMalformedState
	RedirectFailureExchange
)

var (
	ErrMissingParameter = errors.New("authorization redirect missing code or state")
	ErrMalformedState   = errors.New("authorization state is malformed")
)

// StateParts is the decoded state parameter: the group the connection belongs
// to and the platform being connected.
type StateParts struct {
	GroupID    string
	PlatformID string
}

// ParseStateToken splits the opaque state parameter. The gateway encodes it
// as "<groupID>_<platformID>"; platform identifiers may themselves contain
// underscores, so only the first one delimits.
func ParseStateToken(state string) (StateParts, error) {
	parts := strings.SplitN(state, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return StateParts{}, ErrMalformedState
	}
	return StateParts{GroupID: parts[0], PlatformID: parts[1]}, nil
}

// ConnectionRecord is the flow-local finalized connection.
type ConnectionRecord struct {
	Platform string
	Handle   string
	GroupID  string
}

// RedirectDeps captures redirect resolution dependencies.
type RedirectDeps struct {
	Exchange func(ctx context.Context, code, state string) (ConnectionRecord, error)
}

// RedirectResult carries the finalized record or failure metadata.
type RedirectResult struct {
	Failure    RedirectFailureKind
	Err        error
	Record     ConnectionRecord
	GroupID    string
	PlatformID string
}

// RunResolveRedirect validates the redirect parameters and exchanges the
// authorization code. All parameter validation happens before the network
// call: a malformed state never reaches the gateway.
func RunResolveRedirect(ctx context.Context, code, state string, deps RedirectDeps) RedirectResult {
	if code == "" || state == "" {
		return RedirectResult{Failure: RedirectFailureMissingParameter, Err: ErrMissingParameter}
	}
	parts, err := ParseStateToken(state)
	if err != nil {
		return RedirectResult{Failure: RedirectFailureMalformedState, Err: err}
	}

	record, err := deps.Exchange(ctx, code, state)
	if err != nil {
		return RedirectResult{
			Failure:    RedirectFailureExchange,
			Err:        err,
			GroupID:    parts.GroupID,
			PlatformID: parts.PlatformID,
		}
	}
	if record.Platform == "" {
		record.Platform = parts.PlatformID
	}
	if record.GroupID == "" {
		record.GroupID = parts.GroupID
	}
	return RedirectResult{
		Record:     record,
		GroupID:    parts.GroupID,
		PlatformID: parts.PlatformID,
	}
}
