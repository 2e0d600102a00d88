package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterAdmin registers moderation endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, ev *handler.EventHandler, acc *handler.AccountHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/events", ev.ListAdmin)
	g.PUT("/users/:id/kyc", acc.ReviewKYC)
	g.PUT("/users/:id/block", acc.SetBlocked)
}
