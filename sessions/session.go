// Package sessions defines the server-side session record and the store it
// lives in. Records are ephemeral: the store enforces a TTL and every
// successful lookup extends it.
package sessions

import (
	"time"

	"github.com/jrsteele09/go-session-gateway/internal/utils"
)

// Record is the JSON blob stored under "<prefix><session-id>".
//
// AppUserID is the only field required for a session to count as logged in.
// The token fields may be null: a session without a usable upstream access
// token is still valid for app-identity purposes (degraded session).
type Record struct {
	AppUserID    int64  `json:"app_user_id"`
	IAMSubjectID string `json:"iam_subject_id,omitempty"`
	Email        string `json:"email,omitempty"`
	GivenName    string `json:"given_name,omitempty"`
	FamilyName   string `json:"family_name,omitempty"`

	// AccessToken is the current upstream access token. Null after an
	// unrecoverable refresh failure.
	AccessToken *string `json:"access_token"`

	// AccessTokenExpiry is a unix timestamp in seconds. Required while
	// AccessToken is non-null.
	AccessTokenExpiry *float64 `json:"access_token_expiry"`
}

// TokenFreshness is the three-state result of comparing the access-token
// expiry against the refresh buffer. Computed once per request, then
// dispatched on, so the state machine stays testable without I/O.
type TokenFreshness int

const (
	// TokenValid: remaining lifetime is at or above the buffer; pass through.
	TokenValid TokenFreshness = iota
	// TokenNearExpiry: still valid but inside the buffer; attempt a refresh.
	TokenNearExpiry
	// TokenExpired: no remaining lifetime; the token fields get nulled.
	TokenExpired
)

func (f TokenFreshness) String() string {
	switch f {
	case TokenValid:
		return "valid"
	case TokenNearExpiry:
		return "near_expiry"
	default:
		return "expired"
	}
}

// HasToken reports whether the record carries a usable token pair. A token
// without an expiry cannot be trusted and does not count.
func (r *Record) HasToken() bool {
	return r.AccessToken != nil && *r.AccessToken != "" && r.AccessTokenExpiry != nil
}

// UnixSeconds converts a time to the float unix-seconds representation used
// by AccessTokenExpiry.
func UnixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// Freshness classifies the access token relative to now and the refresh
// buffer. Callers must check HasToken first.
func (r *Record) Freshness(now time.Time, buffer time.Duration) TokenFreshness {
	remaining := utils.Value(r.AccessTokenExpiry) - UnixSeconds(now)
	switch {
	case remaining <= 0:
		return TokenExpired
	case remaining < buffer.Seconds():
		return TokenNearExpiry
	default:
		return TokenValid
	}
}

// ClearToken nulls the access-token fields, preserving the app identity.
func (r *Record) ClearToken() {
	r.AccessToken = nil
	r.AccessTokenExpiry = nil
}

// SetToken replaces the access token and its expiry.
func (r *Record) SetToken(accessToken string, expiry time.Time) {
	r.AccessToken = utils.Ptr(accessToken)
	r.AccessTokenExpiry = utils.Ptr(UnixSeconds(expiry))
}
