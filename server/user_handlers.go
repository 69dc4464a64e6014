package server

import "net/http"

// meResponse is the identity surface exposed to the frontend. The upstream
// access token never leaves the gateway.
type meResponse struct {
	UserID        int64  `json:"user_id"`
	Subject       string `json:"subject"`
	Email         string `json:"email,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	TokenDegraded bool   `json:"token_degraded"`
}

// MeHandler reports the identity of the current session. Behind
// RequireSession, so the identity is always present.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		respondJSON(w, http.StatusOK, meResponse{
			UserID:        identity.UserID,
			Subject:       identity.SubjectID,
			Email:         identity.Email,
			GivenName:     identity.GivenName,
			FamilyName:    identity.FamilyName,
			TokenDegraded: identity.Degraded(),
		})
	}
}
