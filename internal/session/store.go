// Package session holds the per-conversation turn history. A session is
// created lazily on first reference to an unseen id and is mutated only by
// the turn orchestrator. Appends for the same session id are serialized;
// distinct session ids never contend with each other.
package session

import (
	"context"
	"errors"

	"carecompanion/pkg"
)

var (
	// ErrInvalidStoreType is returned by NewStore for an unknown driver.
	ErrInvalidStoreType = errors.New("session: invalid store type")
	// ErrInvalidConfig is returned when a driver's required options are missing.
	ErrInvalidConfig = errors.New("session: invalid store configuration")
	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("session: store is closed")
)

// Store defines session storage operations.
type Store interface {
	// Append adds a turn to the session's ordered history, creating the
	// session if the id has never been seen, and returns a snapshot of the
	// full history including the new turn. The snapshot is the caller's to
	// keep; later appends do not mutate it.
	Append(ctx context.Context, id string, turn pkg.Turn) ([]pkg.Turn, error)

	// History returns a snapshot of the session's ordered history. An
	// unseen id yields an empty history, not an error.
	History(ctx context.Context, id string) ([]pkg.Turn, error)

	// Close releases any resources held by the store.
	Close() error
}
