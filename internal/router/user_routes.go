package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterUser registers ticket buyer endpoints.  Every route requires a
// valid JWT with the user role.
func RegisterUser(e *echo.Echo, b *handler.BookingHandler, rv *handler.ReviewHandler, acc *handler.AccountHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser),
	)
	g.POST("/bookings", b.Create)
	g.GET("/my-bookings", b.ListMine)
	g.GET("/bookings/:id", b.Get)
	g.POST("/bookings/:id/cancel", b.Cancel)
	g.POST("/events/:id/reviews", rv.Create)
	g.GET("/wallet", acc.Wallet)
	g.POST("/wallet/topup", acc.TopUp)
}
