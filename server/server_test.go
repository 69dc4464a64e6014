package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-gateway/auth"
	"github.com/jrsteele09/go-session-gateway/idp"
	"github.com/jrsteele09/go-session-gateway/idp/idpfake"
	"github.com/jrsteele09/go-session-gateway/internal/config"
	"github.com/jrsteele09/go-session-gateway/internal/metrics"
	"github.com/jrsteele09/go-session-gateway/server"
	"github.com/jrsteele09/go-session-gateway/sessions"
	sessionfake "github.com/jrsteele09/go-session-gateway/sessions/repofake"
	"github.com/jrsteele09/go-session-gateway/token/cipher"
	"github.com/jrsteele09/go-session-gateway/token/refresh"
	refreshfake "github.com/jrsteele09/go-session-gateway/token/refresh/repofake"
	"github.com/jrsteele09/go-session-gateway/users"
	userfake "github.com/jrsteele09/go-session-gateway/users/repofake"
)

// recordingCollector captures lookup results for assertions.
type recordingCollector struct {
	mu      sync.Mutex
	lookups []string
}

func (c *recordingCollector) RecordSessionLookup(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups = append(c.lookups, result)
}

func (c *recordingCollector) RecordTokenRefresh(string) {}

func (c *recordingCollector) Lookups() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lookups...)
}

type serverFixture struct {
	server  *server.Server
	config  config.Config
	store   *sessionfake.FakeSessionStore
	idp     *idpfake.FakeIdP
	tokens  *refreshfake.FakeRefreshTokenRepo
	metrics *recordingCollector

	// txErr, when set, fails the login transaction before any repo work.
	txErr error
}

func setupServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	cfg := config.New()
	f := &serverFixture{
		config:  cfg,
		store:   sessionfake.NewFakeSessionStore(),
		idp:     idpfake.New(),
		tokens:  refreshfake.NewFakeRefreshTokenRepo(),
		metrics: &recordingCollector{},
	}
	userRepo := userfake.NewFakeUserRepo()

	tx := func(ctx context.Context, fn func(userRepo users.Repo, tokenRepo refresh.Repo) error) error {
		if f.txErr != nil {
			return f.txErr
		}
		return fn(userRepo, f.tokens)
	}

	sessionService, err := auth.NewSessionService(auth.Dependencies{
		Store:         f.store,
		RefreshTokens: f.tokens,
		Cipher:        cipher.New("server-test-key"),
		IdP:           f.idp,
		Tx:            tx,
	}, cfg)
	require.NoError(t, err)

	srv, err := server.New(cfg, server.Dependencies{
		Sessions: sessionService,
		IdP:      f.idp,
		Metrics:  f.metrics,
	})
	require.NoError(t, err)

	f.server = srv
	return f
}

// putSession seeds a live session with a valid upstream token.
func (f *serverFixture) putSession(t *testing.T, sessionID string) {
	t.Helper()

	record := &sessions.Record{
		AppUserID:    7,
		IAMSubjectID: "sub-7",
		Email:        "ada@example.org",
	}
	record.SetToken("access-token", time.Now().Add(time.Hour))
	require.NoError(t, f.store.Set(context.Background(), sessionID, record, f.config.GetSessionDuration()))
}

func (f *serverFixture) sessionCookie(value string) *http.Cookie {
	return &http.Cookie{Name: f.config.GetCookieName(), Value: value}
}

// sessionSetCookies filters the response Set-Cookie headers down to the
// session cookie.
func (f *serverFixture) sessionSetCookies(resp *http.Response) []*http.Cookie {
	var found []*http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == f.config.GetCookieName() {
			found = append(found, cookie)
		}
	}
	return found
}

func TestHealthz(t *testing.T) {
	f := setupServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMeWithoutSessionIsUnauthorized(t *testing.T) {
	f := setupServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, f.metrics.Lookups(), metrics.LookupUnauthorized)
}

func TestMeWithUnknownSessionIsUnauthorized(t *testing.T) {
	f := setupServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.AddCookie(f.sessionCookie("never-created"))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeReturnsIdentityAndRollsCookie(t *testing.T) {
	f := setupServerFixture(t)
	f.putSession(t, "live-session")

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.AddCookie(f.sessionCookie("live-session"))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"user_id":7`)
	require.Contains(t, rec.Body.String(), `"token_degraded":false`)
	require.NotContains(t, rec.Body.String(), "access-token")

	rolled := f.sessionSetCookies(rec.Result())
	require.Len(t, rolled, 1)
	require.Equal(t, "live-session", rolled[0].Value)
	require.Equal(t, int(f.config.GetSessionDuration().Seconds()), rolled[0].MaxAge)
}

func TestRollingSkipsRequestsWithoutSessionCookie(t *testing.T) {
	f := setupServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Empty(t, f.sessionSetCookies(rec.Result()))
}

func TestRollingDoesNotDuplicateHandlerSetCookie(t *testing.T) {
	f := setupServerFixture(t)

	handler := server.ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		f.server.SetSessionCookie(w, "fresh-session")
		w.WriteHeader(http.StatusSeeOther)
	}, f.server.RollingSessionMiddleware)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(f.sessionCookie("old-session"))
	rec := httptest.NewRecorder()
	handler(rec, req)

	// The handler's cookie wins; no second Set-Cookie for the same name.
	cookies := f.sessionSetCookies(rec.Result())
	require.Len(t, cookies, 1)
	require.Equal(t, "fresh-session", cookies[0].Value)
}

func TestRollingStampsWhenHandlerWritesNothing(t *testing.T) {
	f := setupServerFixture(t)

	handler := server.ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
	}, f.server.RollingSessionMiddleware)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(f.sessionCookie("quiet-session"))
	rec := httptest.NewRecorder()
	handler(rec, req)

	cookies := f.sessionSetCookies(rec.Result())
	require.Len(t, cookies, 1)
	require.Equal(t, "quiet-session", cookies[0].Value)
}

func TestLoginRollsInboundSessionCookie(t *testing.T) {
	f := setupServerFixture(t)
	f.putSession(t, "live-session")

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.AddCookie(f.sessionCookie("live-session"))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	// Re-authentication redirects still roll the existing cookie.
	require.Equal(t, http.StatusFound, rec.Code)
	rolled := f.sessionSetCookies(rec.Result())
	require.Len(t, rolled, 1)
	require.Equal(t, "live-session", rolled[0].Value)
	require.Equal(t, int(f.config.GetSessionDuration().Seconds()), rolled[0].MaxAge)
}

func TestLoginRedirectsToIdP(t *testing.T) {
	f := setupServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "idp.test", location.Host)
	require.NotEmpty(t, location.Query().Get("state"))
	require.NotEmpty(t, location.Query().Get("nonce"))
}

// startLogin runs the login redirect and returns the state and nonce it
// generated.
func startLogin(t *testing.T, f *serverFixture, next string) (string, string) {
	t.Helper()

	target := "/auth/login"
	if next != "" {
		target += "?next=" + url.QueryEscape(next)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return location.Query().Get("state"), location.Query().Get("nonce")
}

func TestCallbackEstablishesSessionAndSetsCookie(t *testing.T) {
	f := setupServerFixture(t)
	state, nonce := startLogin(t, f, "/dashboard")

	f.idp.Grant = &idp.TokenGrant{
		AccessToken:  "login-access-token",
		RefreshToken: "login-refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	}
	f.idp.Claims = &idp.Claims{Subject: "sub-new", Email: "grace@example.org", Nonce: nonce}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code=auth-code", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))

	cookies := f.sessionSetCookies(rec.Result())
	require.Len(t, cookies, 1)
	require.NotEmpty(t, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)

	// The cookie maps to a live session.
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.AddCookie(f.sessionCookie(cookies[0].Value))
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"subject":"sub-new"`)
}

func TestCallbackFormPost(t *testing.T) {
	f := setupServerFixture(t)
	state, nonce := startLogin(t, f, "")

	f.idp.Grant = &idp.TokenGrant{AccessToken: "login-access-token", Expiry: time.Now().Add(time.Hour)}
	f.idp.Claims = &idp.Claims{Subject: "sub-new", Nonce: nonce}

	form := url.Values{"state": {state}, "code": {"auth-code"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
}

func TestCallbackWithUnknownStateIsRejected(t *testing.T) {
	f := setupServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state=forged&code=auth-code", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, f.sessionSetCookies(rec.Result()))
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	f := setupServerFixture(t)
	state, nonce := startLogin(t, f, "")

	f.idp.Grant = &idp.TokenGrant{AccessToken: "login-access-token", Expiry: time.Now().Add(time.Hour)}
	f.idp.Claims = &idp.Claims{Subject: "sub-new", Nonce: nonce}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code=auth-code", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code=auth-code", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackNonceMismatchIsRejected(t *testing.T) {
	f := setupServerFixture(t)
	state, _ := startLogin(t, f, "")

	f.idp.Grant = &idp.TokenGrant{AccessToken: "login-access-token", Expiry: time.Now().Add(time.Hour)}
	f.idp.Claims = &idp.Claims{Subject: "sub-new", Nonce: "someone-elses-nonce"}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code=auth-code", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, f.sessionSetCookies(rec.Result()))
}

func TestCallbackExchangeFailureSetsNoCookie(t *testing.T) {
	f := setupServerFixture(t)
	state, _ := startLogin(t, f, "")

	f.idp.ExchangeErr = context.DeadlineExceeded

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code=auth-code", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Empty(t, f.sessionSetCookies(rec.Result()))
}

func TestCallbackTransactionFailureSetsNoCookie(t *testing.T) {
	f := setupServerFixture(t)
	state, nonce := startLogin(t, f, "")

	f.idp.Grant = &idp.TokenGrant{
		AccessToken:  "login-access-token",
		RefreshToken: "login-refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	}
	f.idp.Claims = &idp.Claims{Subject: "sub-new", Nonce: nonce}
	f.txErr = errors.New("commit failed")

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code=auth-code", nil))

	// The response must not claim success: no redirect, no session cookie,
	// and no session record a later request could resolve.
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, f.sessionSetCookies(rec.Result()))
	require.Equal(t, 0, f.tokens.Count())
}

func TestCallbackIdPErrorResponse(t *testing.T) {
	f := setupServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCallbackRejectsAbsoluteReturnURL(t *testing.T) {
	f := setupServerFixture(t)
	state, nonce := startLogin(t, f, "https://evil.example/phish")

	f.idp.Grant = &idp.TokenGrant{AccessToken: "login-access-token", Expiry: time.Now().Add(time.Hour)}
	f.idp.Claims = &idp.Claims{Subject: "sub-new", Nonce: nonce}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code=auth-code", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLogoutExpiresCookieAndDeletesSession(t *testing.T) {
	f := setupServerFixture(t)
	f.putSession(t, "live-session")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(f.sessionCookie("live-session"))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)

	// Exactly one session cookie comes back, and it expires the cookie
	// instead of rolling it.
	cookies := f.sessionSetCookies(rec.Result())
	require.Len(t, cookies, 1)
	require.Empty(t, cookies[0].Value)
	require.Negative(t, cookies[0].MaxAge)

	// The server-side session is gone.
	req = httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.AddCookie(f.sessionCookie("live-session"))
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutWithoutSessionSucceeds(t *testing.T) {
	f := setupServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
}
