package server

func (s *Server) initRoutes() {
	// LOGIN. The login flow handlers issue or expire the session cookie
	// themselves; the rolling re-stamp in the session stack backs off when a
	// handler has already set one.
	s.RegisterRouteHandler("GET "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.SessionMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.CallbackHandler(), s.SessionMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthCallback, ChainMiddleware(s.CallbackHandler(), s.SessionMiddleware()...)) // For form_post response mode
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.SessionMiddleware()...))

	// Authenticated API routes: resolve the session and roll its cookie.
	s.RegisterRouteHandler("GET "+RouteUsersMe, ChainMiddleware(s.MeHandler(), s.SessionMiddleware(s.RequireSession())...))

	// Operational routes bypass session handling entirely.
	s.RegisterRouteHandler("GET "+RouteHealthz, ChainMiddleware(s.HealthzHandler(), s.APIMiddleware()...))
	if s.metricsHandler != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metricsHandler)
	}
}
