package server

import (
	"net/http"
	"strings"
)

// rollingWriter defers the cookie re-stamp until the response commits, so a
// handler that sets its own session cookie (login, logout) wins over the
// middleware.
type rollingWriter struct {
	http.ResponseWriter
	server      *Server
	sessionID   string
	wroteHeader bool
}

func (w *rollingWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.stampCookie()
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *rollingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// stampCookie re-issues the inbound session cookie with a full MaxAge unless
// the handler already set a cookie of the same name.
func (w *rollingWriter) stampCookie() {
	if w.sessionID == "" {
		return
	}
	prefix := w.server.config.GetCookieName() + "="
	for _, setCookie := range w.Header().Values("Set-Cookie") {
		if strings.HasPrefix(setCookie, prefix) {
			return
		}
	}
	w.server.SetSessionCookie(w, w.sessionID)
}

// RollingSessionMiddleware extends the browser-side session lifetime: every
// response on a request that carried a session cookie re-stamps that cookie
// with the full configured MaxAge. The server-side TTL is extended separately
// when the session record is read.
func (s *Server) RollingSessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := s.sessionIDFromRequest(r)
		if sessionID == "" {
			next(w, r)
			return
		}

		rolling := &rollingWriter{ResponseWriter: w, server: s, sessionID: sessionID}
		next(rolling, r)

		// Handlers that write no body never commit the header through the
		// wrapper; stamp before the implicit 200.
		if !rolling.wroteHeader {
			rolling.wroteHeader = true
			rolling.stampCookie()
		}
	}
}
