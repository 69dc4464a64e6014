package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - OIDC login flow
	RouteAuthLogin    = "/auth/login"
	RouteAuthCallback = "/auth/callback"
	RouteAuthLogout   = "/auth/logout"

	// API Routes
	RouteUsersMe = "/users/me"

	// Operational Routes
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"
)
