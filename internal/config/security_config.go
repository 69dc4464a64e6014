package config

import "time"

type SecurityConfig interface {
	// GetRefreshTokenEncryptionKey is the opaque secret the token cipher
	// derives its AES key from. Empty means the cipher is disabled.
	GetRefreshTokenEncryptionKey() string

	// GetRefreshLockTTL bounds the per-user advisory lock held around an IdP
	// refresh call. Short on purpose: a crashed holder must not block the
	// next refresh attempt for long.
	GetRefreshLockTTL() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetRefreshTokenEncryptionKey() string {
	return GetEnv("REFRESH_TOKEN_ENCRYPTION_KEY", "")
}

func (Security) GetRefreshLockTTL() time.Duration {
	return time.Duration(GetEnvInt("REFRESH_LOCK_TTL_SECONDS", 10)) * time.Second
}
