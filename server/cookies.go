package server

import "net/http"

// sessionCookie builds the session cookie from configuration. MaxAge matches
// the server-side session TTL so the browser and the store expire together.
func (s *Server) sessionCookie(sessionID string) *http.Cookie {
	return &http.Cookie{
		Name:     s.config.GetCookieName(),
		Value:    sessionID,
		Path:     s.config.GetCookiePath(),
		Domain:   s.config.GetCookieDomain(),
		MaxAge:   int(s.config.GetSessionDuration().Seconds()),
		HttpOnly: true,
		Secure:   s.config.GetCookieSecure(),
		SameSite: s.config.GetCookieSameSite(),
	}
}

// SetSessionCookie issues the session cookie on a response.
func (s *Server) SetSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, s.sessionCookie(sessionID))
}

// ExpireSessionCookie instructs the browser to drop the session cookie.
func (s *Server) ExpireSessionCookie(w http.ResponseWriter) {
	cookie := s.sessionCookie("")
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

// sessionIDFromRequest reads the session id off the inbound cookie.
// Returns "" when the cookie is absent.
func (s *Server) sessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(s.config.GetCookieName())
	if err != nil {
		return ""
	}
	return cookie.Value
}
