package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-session-gateway/auth"
	"github.com/jrsteele09/go-session-gateway/internal/metrics"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyIdentity stores the resolved session identity
const ContextKeyIdentity ContextKey = "identity"

// IdentityFromContext returns the identity resolved by the session
// middleware, or nil when the request carried no valid session.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(ContextKeyIdentity).(*auth.Identity)
	return identity
}

// RequireSession resolves the session cookie and rejects the request with a
// 401 when it does not map to a live session. The resolved identity is
// injected into the request context; it may be degraded (no upstream token)
// and handlers decide whether that matters.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			identity, err := s.sessions.Resolve(r.Context(), s.sessionIDFromRequest(r))
			if err != nil {
				s.metrics.RecordSessionLookup(metrics.LookupUnauthorized)
				http.Error(w, `{"error":"unauthorized","error_description":"No valid session"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next(w, r.WithContext(ctx))
		}
	}
}

// OptionalSession resolves the session cookie when present but lets the
// request through either way.
func (s *Server) OptionalSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if identity, err := s.sessions.Resolve(r.Context(), s.sessionIDFromRequest(r)); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), ContextKeyIdentity, identity))
			}
			next(w, r)
		}
	}
}
