package sessions

import (
	"context"
	"time"
)

// Store is the key-value abstraction over the TTL-capable session backend.
//
// TTL expiry is enforced by the backend; a missing key and an explicitly
// logged-out session look identical to readers (Get returns
// errors.ErrSessionNotFound for both). Updates are whole-record replacements:
// read, mutate in memory, Set.
type Store interface {
	// Get retrieves the record stored under id. Returns
	// errors.ErrSessionNotFound when the key is absent or expired and
	// errors.ErrSessionMalformed when the stored blob does not decode.
	Get(ctx context.Context, id string) (*Record, error)

	// Set stores the record under id with the given TTL, replacing any
	// previous value.
	Set(ctx context.Context, id string, record *Record, ttl time.Duration) error

	// Expire extends the TTL of an existing key. No-op if the key is absent.
	Expire(ctx context.Context, id string, ttl time.Duration) error

	// Delete removes the record. Deleting an absent key is not an error.
	Delete(ctx context.Context, id string) error

	// AcquireRefreshLock takes a short-lived advisory lock serializing
	// upstream token refreshes for one (user, provider) pair. Returns false
	// when another request already holds it.
	AcquireRefreshLock(ctx context.Context, userID int64, provider string, ttl time.Duration) (bool, error)

	// ReleaseRefreshLock drops the advisory lock. Safe to call when the lock
	// already expired.
	ReleaseRefreshLock(ctx context.Context, userID int64, provider string) error
}
