// Package users holds the minimal user record the session gateway owns. The
// wider user model (profiles, roles) belongs to the portal backend; this
// package only stores what the login callback needs to key sessions.
package users

import "time"

// User is keyed by the IdP subject id, never by email: email may be absent
// from the IdP's claims or change between logins, the subject id is stable.
type User struct {
	ID           int64  `json:"id"`
	IAMSubjectID string `json:"iam_subject_id"`

	// Cached copies of IdP claims, refreshed at every login.
	Email      string `json:"email,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}
