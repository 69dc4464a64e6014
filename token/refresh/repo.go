// Package refresh manages durable server-side storage of upstream refresh
// tokens, one row per (user, provider), encrypted at rest.
package refresh

import (
	"context"
	"time"
)

// StoredRefreshToken is the durable record of a user's refresh token for one
// IdP provider. The plaintext token never touches storage; only the
// ciphertext produced by the token cipher does.
type StoredRefreshToken struct {
	UserID                int64
	ProviderName          string
	EncryptedRefreshToken string
	CreatedAt             time.Time
	LastUsedAt            *time.Time // bumped whenever the token is rotated
}

// Repo stores refresh tokens. At most one live row exists per
// (user, provider): Upsert updates in place on conflict rather than
// inserting.
type Repo interface {
	// Upsert creates or replaces the row for (token.UserID,
	// token.ProviderName), bumping last_used_at.
	Upsert(ctx context.Context, token *StoredRefreshToken) error

	// Get returns the row for (userID, provider), or
	// errors.ErrNoRefreshToken when none exists.
	Get(ctx context.Context, userID int64, provider string) (*StoredRefreshToken, error)

	// DeleteAllForUser removes every refresh-token row for the user, across
	// providers. Called on logout.
	DeleteAllForUser(ctx context.Context, userID int64) error
}
