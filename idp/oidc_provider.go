package idp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-session-gateway/internal/config"
)

// defaultExpiresIn is used when neither expires_in nor a readable exp claim
// is available.
const defaultExpiresIn = time.Hour

// OIDCProvider implements IdentityProvider against a real OIDC issuer,
// discovered from its metadata URL.
type OIDCProvider struct {
	provider     *oidc.Provider
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	httpClient   *http.Client
	nowTime      func() time.Time
}

var _ IdentityProvider = (*OIDCProvider)(nil)

// New discovers the issuer and builds the oauth2 configuration. The HTTP
// client carries a short timeout; every outbound IdP call is bounded by it so
// a slow IdP cannot pin request-handling capacity.
func New(ctx context.Context, cfg config.OIDCConfig) (*OIDCProvider, error) {
	if cfg.GetIssuerURL() == "" {
		return nil, fmt.Errorf("[idp New] OIDC_ISSUER_URL is required")
	}
	if cfg.GetClientID() == "" || cfg.GetClientSecret() == "" {
		return nil, fmt.Errorf("[idp New] OIDC client credentials are required")
	}

	httpClient := &http.Client{Timeout: cfg.GetIdPTimeout()}
	discoveryCtx := oidc.ClientContext(ctx, httpClient)

	provider, err := oidc.NewProvider(discoveryCtx, cfg.GetIssuerURL())
	if err != nil {
		return nil, fmt.Errorf("[idp New] provider discovery: %w", err)
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.GetRedirectURL(),
		Scopes:       cfg.GetScopes(),
	}

	return &OIDCProvider{
		provider:     provider,
		oauth2Config: oauth2Config,
		verifier:     provider.Verifier(&oidc.Config{ClientID: cfg.GetClientID()}),
		httpClient:   httpClient,
		nowTime:      time.Now,
	}, nil
}

// clientContext injects the timeout-bounded HTTP client into the context the
// oauth2 library reads it from.
func (p *OIDCProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// AuthCodeURL builds the authorization redirect with state and nonce.
func (p *OIDCProvider) AuthCodeURL(state, nonce string) string {
	return p.oauth2Config.AuthCodeURL(state, oidc.Nonce(nonce))
}

// Exchange trades the authorization code for tokens and verifies the ID
// token's signature and standard claims. Name and email claims missing from
// the ID token are filled in from the userinfo endpoint, best effort.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*TokenGrant, *Claims, error) {
	ctx = p.clientContext(ctx)

	oauth2Token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("[OIDCProvider Exchange] token exchange: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, nil, fmt.Errorf("[OIDCProvider Exchange] no id_token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, nil, fmt.Errorf("[OIDCProvider Exchange] id_token verification: %w", err)
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, nil, fmt.Errorf("[OIDCProvider Exchange] claim extraction: %w", err)
	}

	if claims.Email == "" || claims.GivenName == "" {
		p.fillFromUserinfo(ctx, oauth2Token, &claims)
	}

	return p.grantFromToken(oauth2Token), &claims, nil
}

// fillFromUserinfo merges claims from the userinfo endpoint into gaps left by
// the ID token. Failures here are logged and ignored: the subject claim from
// the verified ID token is the only thing login actually requires.
func (p *OIDCProvider) fillFromUserinfo(ctx context.Context, token *oauth2.Token, claims *Claims) {
	userinfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		log.Warn().Err(err).Msg("userinfo lookup failed; continuing with id_token claims")
		return
	}

	var extra Claims
	if err := userinfo.Claims(&extra); err != nil {
		log.Warn().Err(err).Msg("userinfo claim extraction failed; continuing with id_token claims")
		return
	}

	if claims.Email == "" {
		claims.Email = extra.Email
	}
	if claims.GivenName == "" {
		claims.GivenName = extra.GivenName
	}
	if claims.FamilyName == "" {
		claims.FamilyName = extra.FamilyName
	}
}

// Refresh performs the grant_type=refresh_token call through the oauth2
// token source, which handles the POST and refresh-token rotation.
func (p *OIDCProvider) Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	ctx = p.clientContext(ctx)

	source := p.oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("[OIDCProvider Refresh] %w", err)
	}

	return p.grantFromToken(token), nil
}

func (p *OIDCProvider) grantFromToken(token *oauth2.Token) *TokenGrant {
	grant := &TokenGrant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if grant.Expiry.IsZero() {
		grant.Expiry = p.expiryFromAccessToken(token.AccessToken)
	}
	return grant
}

// expiryFromAccessToken recovers the expiry from the access token's exp claim
// when the IdP omits expires_in. The signature is not verified: the token
// came over the IdP's TLS channel, and the exp claim is only a scheduling
// hint for the refresh buffer.
func (p *OIDCProvider) expiryFromAccessToken(accessToken string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return p.nowTime().Add(defaultExpiresIn)
}
