// Package postgresrepo implements the user repository on Postgres.
package postgresrepo

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/jrsteele09/go-session-gateway/internal/database"
	apperrors "github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/users"
)

type PostgresUserRepo struct {
	db database.Queryer
}

var _ users.Repo = (*PostgresUserRepo)(nil)

func New(db database.Queryer) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindOrCreate upserts on the iam_subject_id unique constraint. Claim copies
// are refreshed on every login so the cached email and names track the IdP.
func (r *PostgresUserRepo) FindOrCreate(ctx context.Context, user *users.User) (*users.User, error) {
	const query = `
		INSERT INTO users (iam_subject_id, email, given_name, family_name, last_login_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (iam_subject_id)
		DO UPDATE SET email = EXCLUDED.email,
		              given_name = EXCLUDED.given_name,
		              family_name = EXCLUDED.family_name,
		              last_login_at = now()
		RETURNING id, iam_subject_id, email, given_name, family_name, created_at, last_login_at`

	var stored users.User
	var email, givenName, familyName sql.NullString
	err := r.db.QueryRowContext(ctx, query,
		user.IAMSubjectID,
		nullable(user.Email),
		nullable(user.GivenName),
		nullable(user.FamilyName),
	).Scan(&stored.ID, &stored.IAMSubjectID, &email, &givenName, &familyName, &stored.CreatedAt, &stored.LastLoginAt)
	if err != nil {
		return nil, fmt.Errorf("[PostgresUserRepo FindOrCreate] %w", err)
	}

	stored.Email = email.String
	stored.GivenName = givenName.String
	stored.FamilyName = familyName.String
	return &stored, nil
}

func (r *PostgresUserRepo) GetBySubjectID(ctx context.Context, subjectID string) (*users.User, error) {
	return r.get(ctx, `WHERE iam_subject_id = $1`, subjectID)
}

func (r *PostgresUserRepo) get(ctx context.Context, where string, arg any) (*users.User, error) {
	query := `
		SELECT id, iam_subject_id, email, given_name, family_name, created_at, last_login_at
		FROM users ` + where

	var stored users.User
	var email, givenName, familyName sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&stored.ID, &stored.IAMSubjectID, &email, &givenName, &familyName, &stored.CreatedAt, &stored.LastLoginAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[PostgresUserRepo get] %w", err)
	}

	stored.Email = email.String
	stored.GivenName = givenName.String
	stored.FamilyName = familyName.String
	return &stored, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
