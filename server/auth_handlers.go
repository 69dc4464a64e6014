package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-gateway/server/authflowrepo"
)

const (
	stateLength = 32
	nonceLength = 32
)

// LoginHandler starts the OIDC flow: it records the state and nonce for the
// callback to verify, then sends the browser to the IdP authorization
// endpoint.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := generateRandomString(stateLength)
		nonce := generateRandomString(nonceLength)

		err := s.authState.Upsert(state, &authflowrepo.AuthFlowState{
			Nonce:     nonce,
			ReturnURL: safeReturnURL(r.URL.Query().Get("next")),
			CreatedAt: time.Now(),
		})
		if err != nil {
			log.Error().Err(err).Msg("auth flow state storage failed")
			http.Error(w, "login unavailable", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, s.idp.AuthCodeURL(state, nonce), http.StatusFound)
	}
}

// CallbackHandler completes the OIDC flow. The session cookie is set only
// after the user row and refresh token have committed; any failure before
// that leaves the browser logged out.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "malformed callback", http.StatusBadRequest)
				return
			}
		}

		if errorCode := r.FormValue("error"); errorCode != "" {
			log.Warn().Str("error", errorCode).Str("description", r.FormValue("error_description")).Msg("idp returned an authorization error")
			http.Error(w, "authorization failed", http.StatusBadGateway)
			return
		}

		state := r.FormValue("state")
		flowState, err := s.authState.Get(state)
		if err != nil {
			log.Warn().Err(err).Msg("callback with unknown or expired state")
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}
		// Single use: a replayed callback must not find the state again.
		if err := s.authState.Delete(state); err != nil {
			log.Warn().Err(err).Msg("auth flow state deletion failed")
		}

		code := r.FormValue("code")
		if code == "" {
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			return
		}

		grant, claims, err := s.idp.Exchange(r.Context(), code)
		if err != nil {
			log.Error().Err(err).Msg("authorization code exchange failed")
			http.Error(w, "token exchange failed", http.StatusBadGateway)
			return
		}

		if claims.Nonce != flowState.Nonce {
			log.Warn().Str("subject", claims.Subject).Msg("nonce mismatch on callback")
			http.Error(w, "invalid nonce", http.StatusBadRequest)
			return
		}

		sessionID, _, err := s.sessions.EstablishSession(r.Context(), grant, claims)
		if err != nil {
			log.Error().Err(err).Str("subject", claims.Subject).Msg("session establishment failed")
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}

		s.SetSessionCookie(w, sessionID)
		http.Redirect(w, r, flowState.ReturnURL, http.StatusSeeOther)
	}
}

// LogoutHandler tears the session down on both sides: the server-side record
// and refresh tokens go first, then the cookie is expired. Logout with no
// session is still a success.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionID := s.sessionIDFromRequest(r); sessionID != "" {
			if err := s.sessions.Logout(r.Context(), sessionID); err != nil {
				log.Error().Err(err).Msg("logout failed")
				http.Error(w, "logout failed", http.StatusInternalServerError)
				return
			}
		}

		s.ExpireSessionCookie(w)
		w.WriteHeader(http.StatusNoContent)
	}
}
