// Package postgresrepo implements the refresh-token repository on Postgres.
package postgresrepo

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/jrsteele09/go-session-gateway/internal/database"
	apperrors "github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/token/refresh"
)

// PostgresRefreshTokenRepo runs against any database.Queryer, so the callback
// flow can include the upsert in the same transaction as the user row.
type PostgresRefreshTokenRepo struct {
	db database.Queryer
}

var _ refresh.Repo = (*PostgresRefreshTokenRepo)(nil)

func New(db database.Queryer) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

// Upsert inserts or rotates the row for (user, provider). The unique
// constraint on (user_id, provider_name) guarantees at most one live row;
// rotation is an update in place with last_used_at bumped.
func (r *PostgresRefreshTokenRepo) Upsert(ctx context.Context, token *refresh.StoredRefreshToken) error {
	const query = `
		INSERT INTO user_refresh_tokens (user_id, provider_name, encrypted_refresh_token, last_used_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT ON CONSTRAINT user_refresh_tokens_user_provider_key
		DO UPDATE SET encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
		              last_used_at = now()`

	if _, err := r.db.ExecContext(ctx, query, token.UserID, token.ProviderName, token.EncryptedRefreshToken); err != nil {
		return fmt.Errorf("[PostgresRefreshTokenRepo Upsert] %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) Get(ctx context.Context, userID int64, provider string) (*refresh.StoredRefreshToken, error) {
	const query = `
		SELECT user_id, provider_name, encrypted_refresh_token, created_at, last_used_at
		FROM user_refresh_tokens
		WHERE user_id = $1 AND provider_name = $2`

	var token refresh.StoredRefreshToken
	err := r.db.QueryRowContext(ctx, query, userID, provider).Scan(
		&token.UserID,
		&token.ProviderName,
		&token.EncryptedRefreshToken,
		&token.CreatedAt,
		&token.LastUsedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNoRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("[PostgresRefreshTokenRepo Get] %w", err)
	}
	return &token, nil
}

func (r *PostgresRefreshTokenRepo) DeleteAllForUser(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("[PostgresRefreshTokenRepo DeleteAllForUser] %w", err)
	}
	return nil
}
