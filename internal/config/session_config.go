package config

import "time"

type SessionConfig interface {
	// GetSessionDuration is the server-side TTL of a session record. Every
	// successful lookup extends the TTL by this amount (rolling session).
	GetSessionDuration() time.Duration

	// GetRefreshBuffer is how long before access-token expiry a proactive
	// refresh is attempted.
	GetRefreshBuffer() time.Duration

	// GetSessionKeyPrefix is prepended to session ids to form store keys.
	GetSessionKeyPrefix() string

	// GetFakeExpiresIn overrides the IdP's expires_in when non-zero.
	// Test-only; never set in real deployments.
	GetFakeExpiresIn() int
}

type SessionVars struct{}

var _ SessionConfig = SessionVars{}

func (SessionVars) GetSessionDuration() time.Duration {
	return time.Duration(GetEnvInt("SESSION_DURATION_SECONDS", 8*3600)) * time.Second
}

func (SessionVars) GetRefreshBuffer() time.Duration {
	return time.Duration(GetEnvInt("REFRESH_BUFFER_SECONDS", 300)) * time.Second
}

func (SessionVars) GetSessionKeyPrefix() string {
	return GetEnv("SESSION_KEY_PREFIX", "session:")
}

func (SessionVars) GetFakeExpiresIn() int {
	return GetEnvInt("OIDC_FAKE_EXPIRES_IN", 0)
}
