// Package store provides durable keyed storage of one session document
// per game code, with optimistic concurrency control. Every write
// replaces the whole document; writers must always start from the
// latest read.
package store

import (
	"context"
	"errors"

	"blackout/api/internal/game"
)

var (
	// ErrNotFound means the game code has no document. Callers translate
	// it into a "create new session" flow.
	ErrNotFound = errors.New("session not found")

	// ErrConflict means the expected version no longer matches: the
	// caller lost a CAS race and must re-read before retrying.
	ErrConflict = errors.New("stale write")

	// ErrUnavailable wraps backing-store failures. Never swallowed;
	// callers surface it as a connection-lost state and keep polling.
	ErrUnavailable = errors.New("store unavailable")
)

// SessionStore is the contract shared by all backends. Versions are
// store-assigned sequence numbers starting at 1; exactly one of two
// concurrent CompareAndSet calls against the same version succeeds.
type SessionStore interface {
	// Get returns the current document and its version.
	Get(ctx context.Context, code string) (game.State, int64, error)

	// Create persists a new document at version 1. Returns ErrConflict
	// if the code already exists.
	Create(ctx context.Context, state game.State) error

	// CompareAndSet replaces the document if the stored version still
	// equals expected, bumping the version by one.
	CompareAndSet(ctx context.Context, code string, expected int64, state game.State) error

	// Delete retires a session. Deleting an unknown code is not an error.
	Delete(ctx context.Context, code string) error

	// ListCodes returns the codes of all live sessions.
	ListCodes(ctx context.Context) ([]string, error)

	// Ping reports backend connectivity for readiness checks.
	Ping(ctx context.Context) error

	Close() error
}
