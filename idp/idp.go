// Package idp talks to the upstream OIDC identity provider: authorization
// redirects, authorization-code exchange, and refresh-token grants.
package idp

import (
	"context"
	"time"
)

// Claims are the identity claims the gateway consumes. Subject is the only
// required one; users are keyed by it, never by email.
type Claims struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Nonce      string `json:"nonce"`
}

// TokenGrant is the outcome of a token-endpoint call.
type TokenGrant struct {
	AccessToken string

	// RefreshToken is the refresh token to store. On a refresh grant the IdP
	// may rotate it; callers compare against the one they sent.
	RefreshToken string

	// Expiry is the absolute access-token expiry derived from expires_in (or
	// from the token's exp claim when the IdP omits expires_in).
	Expiry time.Time
}

// IdentityProvider is the gateway's view of the IdP. The OIDC implementation
// lives in this package; tests substitute fakes.
type IdentityProvider interface {
	// AuthCodeURL builds the authorization redirect for the login flow.
	AuthCodeURL(state, nonce string) string

	// Exchange trades an authorization code for tokens and verified ID-token
	// claims. Nonce validation is the caller's job (it owns the flow state).
	Exchange(ctx context.Context, code string) (*TokenGrant, *Claims, error)

	// Refresh performs a grant_type=refresh_token call. Any failure is
	// terminal for this request; the coordinator does not retry
	// synchronously.
	Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error)
}
