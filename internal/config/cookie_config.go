package config

import (
	"net/http"
	"strings"
)

type CookieConfig interface {
	GetCookieName() string
	GetCookieDomain() string
	GetCookiePath() string
	GetCookieSecure() bool

	// GetCookieSameSite returns the effective SameSite attribute. A configured
	// "None" degrades to Lax when the Secure flag is off: browsers reject
	// SameSite=None cookies without Secure.
	GetCookieSameSite() http.SameSite
}

type CookieVars struct{}

var _ CookieConfig = CookieVars{}

func (CookieVars) GetCookieName() string {
	return GetEnv("COOKIE_NAME", "portal_session_main")
}

func (CookieVars) GetCookieDomain() string {
	return GetEnv("COOKIE_DOMAIN", "")
}

func (CookieVars) GetCookiePath() string {
	return GetEnv("COOKIE_PATH", "/")
}

func (CookieVars) GetCookieSecure() bool {
	return GetEnvBool("COOKIE_SECURE", false)
}

func (c CookieVars) GetCookieSameSite() http.SameSite {
	switch strings.ToLower(GetEnv("COOKIE_SAMESITE", "lax")) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		if !c.GetCookieSecure() {
			return http.SameSiteLaxMode
		}
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
