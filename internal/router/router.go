// Package router registers the HTTP routes and their middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
)

// RegisterRoutes registers the probes and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", h.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the session endpoints.  Register, login and
// refresh are rate limited; logout accepts either a refresh token or a
// bearer token and so sits outside JWTAuth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the catalog endpoints guests can browse.  The
// event detail route reads an optional token so organizers and admins can
// view their unapproved events.
func RegisterPublic(e *echo.Echo, ev *handler.EventHandler, rv *handler.ReviewHandler, jwtSecret string, limiter, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", limiter)
	g.GET("/venues", handler.ListVenues, cache)
	g.GET("/venues/:id", handler.GetVenue, cache)
	g.GET("/events", ev.ListPublic, cache)
	g.GET("/events/:id", ev.Get, middleware.OptionalJWT(jwtSecret))
	g.GET("/events/:id/reviews", rv.List)
}
