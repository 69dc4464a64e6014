package auth

import "github.com/jrsteele09/go-session-gateway/sessions"

// Identity is the resolved per-request user identity. It always carries a
// valid app user id; the upstream access token may be absent when the session
// is degraded.
type Identity struct {
	UserID     int64
	SubjectID  string
	Email      string
	GivenName  string
	FamilyName string

	// AccessToken is the upstream access token, empty in a degraded session.
	// Operations that call upstream services must check Degraded and fail
	// explicitly instead of sending an empty bearer token.
	AccessToken string
}

// Degraded reports whether the session lacks a usable upstream access token.
// The app-level identity is still valid either way.
func (i *Identity) Degraded() bool {
	return i.AccessToken == ""
}

func identityFromRecord(record *sessions.Record) *Identity {
	identity := &Identity{
		UserID:     record.AppUserID,
		SubjectID:  record.IAMSubjectID,
		Email:      record.Email,
		GivenName:  record.GivenName,
		FamilyName: record.FamilyName,
	}
	if record.HasToken() {
		identity.AccessToken = *record.AccessToken
	}
	return identity
}
