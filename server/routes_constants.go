package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthRegister       = "/api/v1/auth/register"
	RouteAuthLogin          = "/api/v1/auth/login"
	RouteAuthLogout         = "/api/v1/auth/logout"
	RouteAuthRefresh        = "/api/v1/auth/refresh"
	RouteAuthChangePassword = "/api/v1/auth/change-password"
	RouteAuthMe             = "/api/v1/auth/me"

	// Profile Routes
	RouteProfile  = "/api/v1/profile"
	RouteSessions = "/api/v1/sessions"

	// Operational Routes
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)
