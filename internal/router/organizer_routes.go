package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterOrganizer registers the organizer dashboard endpoints.  The
// websocket route reads its token from ?access_token= since browsers
// cannot set headers on upgrade requests.
func RegisterOrganizer(e *echo.Echo, ev *handler.EventHandler, b *handler.BookingHandler, acc *handler.AccountHandler, rooms *handler.RoomHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOrganizer),
	)
	g.POST("/events", ev.Create)
	g.GET("/organizer/events", ev.ListMine)
	g.POST("/organizer/kyc", acc.SubmitKYC)

	// Shared with admins: ownership is checked by the services.
	staff := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin),
	)
	staff.PUT("/events/:id/status", ev.SetStatus)
	staff.GET("/organizer/events/:id/bookings", b.ListByEvent)
	staff.PUT("/organizer/booking/:id/status", b.UpdateStatus)
	staff.POST("/bookings/verify", b.Verify)
	staff.GET("/organizer/notifications", rooms.Notifications)
	staff.GET("/organizer/ws", rooms.Serve)
}
