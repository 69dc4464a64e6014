// Package auth implements the session and token-lifecycle coordination: it
// resolves session cookies to user identities, refreshes upstream access
// tokens near expiry, and establishes and tears down sessions.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-gateway/idp"
	apperrors "github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/internal/metrics"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/jrsteele09/go-session-gateway/token/cipher"
	"github.com/jrsteele09/go-session-gateway/token/refresh"
	"github.com/jrsteele09/go-session-gateway/users"
)

const sessionIDLength = 32 // bytes of entropy, 256 bits

// Config is the subset of the gateway configuration the coordinator reads.
type Config interface {
	GetSessionDuration() time.Duration
	GetRefreshBuffer() time.Duration
	GetFakeExpiresIn() int
	GetProviderName() string
	GetRefreshLockTTL() time.Duration
}

// TxRunner runs fn with user and refresh-token repositories bound to one
// database transaction. The login flow uses it so the user row and the
// encrypted refresh token commit together, before any cookie is issued.
type TxRunner func(ctx context.Context, fn func(userRepo users.Repo, tokenRepo refresh.Repo) error) error

// Dependencies holds everything the SessionService mediates between. It owns
// none of it: session records belong to the store, refresh-token rows to
// their repository.
type Dependencies struct {
	Store         sessions.Store
	RefreshTokens refresh.Repo
	Cipher        *cipher.TokenCipher
	IdP           idp.IdentityProvider
	Tx            TxRunner
	Metrics       metrics.Collector
}

// SessionService is the stateless mediator between the session store, the
// refresh-token repository, and the IdP.
type SessionService struct {
	deps    Dependencies
	config  Config
	nowTime func() time.Time
}

// SessionServiceOption modifies a SessionService.
type SessionServiceOption func(*SessionService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SessionServiceOption {
	return func(s *SessionService) {
		s.nowTime = nowFunc
	}
}

// NewSessionService validates dependencies and builds the coordinator.
func NewSessionService(deps Dependencies, cfg Config, options ...SessionServiceOption) (*SessionService, error) {
	if deps.Store == nil {
		return nil, errors.New("[NewSessionService] session store is required")
	}
	if deps.RefreshTokens == nil {
		return nil, errors.New("[NewSessionService] refresh-token repo is required")
	}
	if deps.Cipher == nil {
		return nil, errors.New("[NewSessionService] token cipher is required")
	}
	if deps.IdP == nil {
		return nil, errors.New("[NewSessionService] identity provider is required")
	}
	if deps.Tx == nil {
		return nil, errors.New("[NewSessionService] transaction runner is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopCollector{}
	}

	s := &SessionService{
		deps:    deps,
		config:  cfg,
		nowTime: time.Now,
	}
	for _, option := range options {
		option(s)
	}
	return s, nil
}

// Resolve looks up the session, keeps it alive, and runs the token state
// machine. Returns ErrNotAuthenticated for a missing, expired, or malformed
// session; every other failure degrades the session rather than surfacing an
// error, so nothing here ever takes the request down.
func (s *SessionService) Resolve(ctx context.Context, sessionID string) (*Identity, error) {
	if sessionID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}

	record, err := s.deps.Store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionMalformed) {
			log.Warn().Str("session_id", sessionID).Err(err).Msg("invalid session data")
			s.deps.Metrics.RecordSessionLookup(metrics.LookupMalformed)
		} else {
			s.deps.Metrics.RecordSessionLookup(metrics.LookupMiss)
		}
		return nil, apperrors.ErrNotAuthenticated
	}

	// Keep the server-side record alive. A failed extension is not fatal for
	// this request; the record was just read.
	if err := s.deps.Store.Expire(ctx, sessionID, s.config.GetSessionDuration()); err != nil {
		log.Warn().Err(err).Msg("session ttl extension failed")
	}

	// Minimal requirement for being logged in to the app at all.
	if record.AppUserID == 0 {
		s.deps.Metrics.RecordSessionLookup(metrics.LookupMalformed)
		return nil, apperrors.ErrNotAuthenticated
	}

	switch {
	case record.HasToken():
		s.runTokenStateMachine(ctx, sessionID, record)
	case record.AccessToken != nil:
		// A token without an expiry cannot be scheduled for refresh; drop it.
		record.ClearToken()
		s.persist(ctx, sessionID, record)
	}

	s.deps.Metrics.RecordSessionLookup(metrics.LookupHit)
	return identityFromRecord(record), nil
}

// runTokenStateMachine dispatches on the token freshness computed once. The
// session is preserved on every path; only the token fields change.
func (s *SessionService) runTokenStateMachine(ctx context.Context, sessionID string, record *sessions.Record) {
	switch record.Freshness(s.nowTime(), s.config.GetRefreshBuffer()) {
	case sessions.TokenValid:
		// Pass through unchanged.
	case sessions.TokenExpired:
		// Expire the upstream token but do not drop the app session.
		record.ClearToken()
		s.persist(ctx, sessionID, record)
		s.deps.Metrics.RecordTokenRefresh(metrics.RefreshExpired)
	case sessions.TokenNearExpiry:
		s.refreshNearExpiry(ctx, sessionID, record)
	}
}

// refreshNearExpiry attempts a proactive refresh. It runs on a
// cancellation-detached context: a client disconnect mid-refresh must not
// abandon the IdP call or the writes, the next request benefits from them.
//
// The advisory lock serializes refreshes per (user, provider); concurrent
// requests that lose the race pass through with the still-valid token instead
// of issuing a duplicate refresh whose result would be discarded.
func (s *SessionService) refreshNearExpiry(ctx context.Context, sessionID string, record *sessions.Record) {
	ctx = context.WithoutCancel(ctx)
	provider := s.config.GetProviderName()

	acquired, err := s.deps.Store.AcquireRefreshLock(ctx, record.AppUserID, provider, s.config.GetRefreshLockTTL())
	if err != nil || !acquired {
		if err != nil {
			log.Warn().Err(err).Msg("refresh lock acquisition failed; skipping refresh")
		}
		s.deps.Metrics.RecordTokenRefresh(metrics.RefreshLockSkipped)
		return
	}
	defer func() {
		if err := s.deps.Store.ReleaseRefreshLock(ctx, record.AppUserID, provider); err != nil {
			log.Warn().Err(err).Msg("refresh lock release failed; lock will expire on its own")
		}
	}()

	stored, err := s.deps.RefreshTokens.Get(ctx, record.AppUserID, provider)
	if err != nil {
		log.Info().Int64("user_id", record.AppUserID).Msg("no refresh token on file; degrading session")
		s.degrade(ctx, sessionID, record, metrics.RefreshNoToken)
		return
	}

	plaintext, err := s.deps.Cipher.Decrypt(stored.EncryptedRefreshToken)
	if err != nil {
		// Wrong key or corrupted ciphertext: treated as "no refresh token",
		// not retried.
		log.Warn().Int64("user_id", record.AppUserID).Err(err).Msg("refresh token decryption failed; degrading session")
		s.degrade(ctx, sessionID, record, metrics.RefreshNoToken)
		return
	}

	grant, err := s.deps.IdP.Refresh(ctx, plaintext)
	if err != nil {
		// Transient upstream failure. Not retried synchronously; the next
		// request naturally tries again.
		log.Warn().Int64("user_id", record.AppUserID).Err(err).Msg("upstream token refresh failed; degrading session")
		s.degrade(ctx, sessionID, record, metrics.RefreshFailed)
		return
	}

	record.SetToken(grant.AccessToken, s.effectiveExpiry(grant.Expiry))

	if grant.RefreshToken != "" && grant.RefreshToken != plaintext {
		s.rotateRefreshToken(ctx, record.AppUserID, provider, grant.RefreshToken)
	}

	s.persist(ctx, sessionID, record)
	s.deps.Metrics.RecordTokenRefresh(metrics.RefreshSuccess)
}

// rotateRefreshToken re-encrypts and overwrites the stored refresh token.
// Failures lose the rotation, not the session: the old token may still work,
// and if it does not the session degrades on the next refresh attempt.
func (s *SessionService) rotateRefreshToken(ctx context.Context, userID int64, provider, refreshToken string) {
	encrypted, err := s.deps.Cipher.Encrypt(refreshToken)
	if err != nil {
		log.Warn().Int64("user_id", userID).Err(err).Msg("refresh token encryption failed; rotation skipped")
		return
	}

	err = s.deps.RefreshTokens.Upsert(ctx, &refresh.StoredRefreshToken{
		UserID:                userID,
		ProviderName:          provider,
		EncryptedRefreshToken: encrypted,
	})
	if err != nil {
		log.Warn().Int64("user_id", userID).Err(err).Msg("refresh token rotation failed")
	}
}

// degrade nulls the token fields and persists the truncated record with a
// full TTL, preserving the app identity for work that does not need a live
// upstream token.
func (s *SessionService) degrade(ctx context.Context, sessionID string, record *sessions.Record, outcome string) {
	record.ClearToken()
	s.persist(ctx, sessionID, record)
	s.deps.Metrics.RecordTokenRefresh(outcome)
}

func (s *SessionService) persist(ctx context.Context, sessionID string, record *sessions.Record) {
	if err := s.deps.Store.Set(ctx, sessionID, record, s.config.GetSessionDuration()); err != nil {
		log.Error().Err(err).Msg("session record write failed")
	}
}

// effectiveExpiry applies the test-only expires_in override.
func (s *SessionService) effectiveExpiry(expiry time.Time) time.Time {
	if fake := s.config.GetFakeExpiresIn(); fake > 0 {
		return s.nowTime().Add(time.Duration(fake) * time.Second)
	}
	return expiry
}

// generateSessionID creates a cryptographically random, unguessable session
// id. Never derived from or equal to any IdP token.
func generateSessionID() (string, error) {
	b := make([]byte, sessionIDLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
