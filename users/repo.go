package users

import "context"

type Repo interface {
	// FindOrCreate looks a user up by IdP subject id, creating a minimal row
	// on first login. Existing users get their cached claim copies
	// (email, names) and last_login_at refreshed.
	FindOrCreate(ctx context.Context, user *User) (*User, error)

	// GetBySubjectID returns the user for an IdP subject id, or
	// errors.ErrUserNotFound.
	GetBySubjectID(ctx context.Context, subjectID string) (*User, error)
}
