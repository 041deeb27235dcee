package router // route registration for the booking API

import (
	"github.com/labstack/echo/v4"

	"github.com/talkademy/booking-api/internal/handler"
	"github.com/talkademy/booking-api/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes.  Unauthenticated
// operations live under /v1/auth; /v1/me is protected by the JWT
// middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts either a bearer token (revoke all sessions) or a
	// refresh_token body (revoke one), so no JWT middleware here.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("MEMBER", "ADMIN"))
	auth.GET("/me", a.Me)
}

// RegisterMember registers the member-facing booking surface.  Admins
// can book sessions too, so both roles pass.
func RegisterMember(e *echo.Echo, h *handler.MemberHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("MEMBER", "ADMIN"))

	// Calendar with per-session availability for the viewer.
	g.GET("/sessions", h.Sessions)

	// Selection set: toggle membership, inspect grouped by date.
	g.POST("/selection/toggle", h.ToggleSelection)
	g.GET("/selection", h.GetSelection)
	// Submit the whole selection as one batch.
	g.POST("/selection/submit", h.SubmitSelection)

	// Reservations: list with detail, cancel inside the allowed window.
	g.GET("/my-reservations", h.MyReservations)
	g.DELETE("/reservations/:id", h.Cancel)

	// Explicit refresh of the catalog and the viewer's reservation cache.
	g.POST("/catalog/refresh", h.RefreshCatalog)
}

// RegisterAdmin registers catalog and membership management, ADMIN only.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN"))

	g.POST("/courses", h.CreateCourse)
	g.PUT("/courses/:id", h.UpdateCourse)
	g.GET("/courses", h.ListCourses)

	g.POST("/sessions", h.CreateSession)
	g.GET("/sessions", h.ListSessions)
	g.DELETE("/sessions/:id", h.CancelSession)

	g.PUT("/members/:id/membership", h.SetMembership)
}
