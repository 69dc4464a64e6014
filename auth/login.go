package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-gateway/idp"
	apperrors "github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/jrsteele09/go-session-gateway/token/refresh"
	"github.com/jrsteele09/go-session-gateway/users"
)

// EstablishSession completes a login: find-or-create the user row keyed by
// the IdP subject, persist the encrypted refresh token, and only after both
// have committed, create the session record and return its id for the cookie.
//
// The database writes share one transaction. If the commit fails the caller
// must not claim success: no session exists and no cookie may be set.
func (s *SessionService) EstablishSession(ctx context.Context, grant *idp.TokenGrant, claims *idp.Claims) (string, *sessions.Record, error) {
	if claims == nil || claims.Subject == "" {
		return "", nil, errors.New("[EstablishSession] subject claim is required")
	}
	if grant == nil || grant.AccessToken == "" {
		return "", nil, errors.New("[EstablishSession] access token is required")
	}

	var user *users.User
	err := s.deps.Tx(ctx, func(userRepo users.Repo, tokenRepo refresh.Repo) error {
		created, err := userRepo.FindOrCreate(ctx, &users.User{
			IAMSubjectID: claims.Subject,
			Email:        claims.Email,
			GivenName:    claims.GivenName,
			FamilyName:   claims.FamilyName,
		})
		if err != nil {
			return err
		}
		user = created

		if grant.RefreshToken == "" {
			log.Info().Int64("user_id", user.ID).Msg("IdP issued no refresh token; session will degrade at access-token expiry")
			return nil
		}

		encrypted, err := s.deps.Cipher.Encrypt(grant.RefreshToken)
		if err != nil {
			// A disabled or broken cipher must not block login; the session
			// simply cannot be refreshed later.
			log.Warn().Int64("user_id", user.ID).Err(err).Msg("refresh token encryption failed; token not persisted")
			return nil
		}

		return tokenRepo.Upsert(ctx, &refresh.StoredRefreshToken{
			UserID:                user.ID,
			ProviderName:          s.config.GetProviderName(),
			EncryptedRefreshToken: encrypted,
		})
	})
	if err != nil {
		return "", nil, fmt.Errorf("[EstablishSession] login transaction: %w", err)
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return "", nil, fmt.Errorf("[EstablishSession] session id generation: %w", err)
	}

	record := &sessions.Record{
		AppUserID:    user.ID,
		IAMSubjectID: claims.Subject,
		Email:        claims.Email,
		GivenName:    claims.GivenName,
		FamilyName:   claims.FamilyName,
	}
	record.SetToken(grant.AccessToken, s.effectiveExpiry(grant.Expiry))

	if err := s.deps.Store.Set(ctx, sessionID, record, s.config.GetSessionDuration()); err != nil {
		return "", nil, fmt.Errorf("[EstablishSession] session record write: %w", err)
	}

	log.Info().Int64("user_id", user.ID).Str("subject", claims.Subject).Msg("session established")
	return sessionID, record, nil
}

// Logout deletes the session record and every refresh-token row for the
// user. A stale cookie presented afterwards resolves to "no user".
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	// Learn the user id before the record disappears; best effort.
	record, err := s.deps.Store.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, apperrors.ErrSessionNotFound) && !errors.Is(err, apperrors.ErrSessionMalformed) {
		log.Warn().Err(err).Msg("session lookup during logout failed")
	}

	if err := s.deps.Store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("[Logout] session delete: %w", err)
	}

	if record != nil && record.AppUserID != 0 {
		if err := s.deps.RefreshTokens.DeleteAllForUser(ctx, record.AppUserID); err != nil {
			return fmt.Errorf("[Logout] refresh token delete: %w", err)
		}
		log.Info().Int64("user_id", record.AppUserID).Msg("user logged out")
	}

	return nil
}
