package storage

import "errors"

// Sentinel errors for the storage orchestrator. Errors from Open and from a
// commit's own work wrap one of these with %w so callers can match with
// errors.Is/errors.As rather than string comparison. When Commit's ctx ends
// before the result arrives, Commit returns ctx.Err() unwrapped.
var (
	// ErrOpenFailed is returned by Open when the backing store or bootstrap
	// scan fails.
	ErrOpenFailed = errors.New("storage: open failed")

	// ErrVersionMismatch is returned by Commit when the delta's base
	// snapshot is not the store's current latest version; another commit
	// raced ahead of it.
	ErrVersionMismatch = errors.New("storage: commit base version does not match latest committed version")

	// ErrDecode is returned when a value read back from the backing store
	// cannot be decoded.
	ErrDecode = errors.New("storage: decode error")

	// ErrBackingStore wraps failures reported by the badger-backed adapter.
	ErrBackingStore = errors.New("storage: backing store error")

	// ErrJmt wraps failures reported by the tree primitive during a commit.
	ErrJmt = errors.New("storage: jmt error")

	// ErrJoin is returned when the goroutine performing a commit panics
	// instead of completing normally.
	ErrJoin = errors.New("storage: commit worker panicked")
)
