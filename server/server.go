// Package server exposes the gateway over HTTP: the OIDC login and callback
// flow, logout, the identity endpoint, and the rolling session cookie.
package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-gateway/auth"
	"github.com/jrsteele09/go-session-gateway/idp"
	"github.com/jrsteele09/go-session-gateway/internal/config"
	"github.com/jrsteele09/go-session-gateway/internal/metrics"
	"github.com/jrsteele09/go-session-gateway/server/authflowrepo"
)

type Server struct {
	env            string // Environment (e.g., "DEV", "production")
	mux            *http.ServeMux
	routes         []string
	config         config.Config
	sessions       *auth.SessionService
	idp            idp.IdentityProvider
	authState      authflowrepo.Repo
	metrics        metrics.Collector
	metricsHandler http.Handler
}

// Dependencies holds everything the Server routes requests to.
type Dependencies struct {
	Sessions       *auth.SessionService
	IdP            idp.IdentityProvider
	AuthState      authflowrepo.Repo
	Metrics        metrics.Collector
	MetricsHandler http.Handler
}

func New(cfg config.Config, deps Dependencies) (*Server, error) {
	if deps.Sessions == nil {
		return nil, errors.New("[Server New] session service is required")
	}
	if deps.IdP == nil {
		return nil, errors.New("[Server New] identity provider is required")
	}
	if deps.AuthState == nil {
		deps.AuthState = authflowrepo.NewInMemoryRepo()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopCollector{}
	}

	s := &Server{
		mux:            http.NewServeMux(),
		config:         cfg,
		sessions:       deps.Sessions,
		idp:            deps.IdP,
		authState:      deps.AuthState,
		metrics:        deps.Metrics,
		metricsHandler: deps.MetricsHandler,
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Info().Str("method", parts[0]).Str("path", parts[1]).Msg("route registered")
		} else {
			log.Info().Str("path", parts[0]).Msg("route registered")
		}
	}
}
