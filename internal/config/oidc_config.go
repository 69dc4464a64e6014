package config

import (
	"strings"
	"time"
)

type OIDCConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURL() string
	GetScopes() []string

	// GetProviderName keys refresh-token rows; one row per (user, provider).
	GetProviderName() string

	// GetIdPTimeout bounds every outbound call to the IdP. Must stay short:
	// a slow IdP pins request-handling capacity otherwise.
	GetIdPTimeout() time.Duration
}

type OIDCVars struct{}

var _ OIDCConfig = OIDCVars{}

func (OIDCVars) GetIssuerURL() string {
	return GetEnv("OIDC_ISSUER_URL", "")
}

func (OIDCVars) GetClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (OIDCVars) GetClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

func (o OIDCVars) GetRedirectURL() string {
	if uri := GetEnv("OIDC_REDIRECT_URI", ""); uri != "" {
		return uri
	}
	base := strings.TrimSuffix(EnvVars{}.GetBaseURL(), "/")
	return base + "/auth/callback"
}

func (OIDCVars) GetScopes() []string {
	scopes := GetEnv("OIDC_SCOPES", "openid profile email offline_access")
	return strings.Fields(scopes)
}

func (OIDCVars) GetProviderName() string {
	return GetEnv("OIDC_PROVIDER_NAME", "iam")
}

func (OIDCVars) GetIdPTimeout() time.Duration {
	return time.Duration(GetEnvInt("IDP_TIMEOUT_SECONDS", 10)) * time.Second
}
