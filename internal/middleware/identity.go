package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// ActorFrom returns the authenticated caller stored by JWTAuth.  ok is
// false on unauthenticated routes.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	if !ok || id == 0 {
		return model.Actor{}, false
	}
	role, _ := c.Get(ctxRole).(model.Role)
	return model.Actor{ID: id, Role: role}, true
}

// currentUserID is the rate limit key component: the user id, or "anon".
func currentUserID(c echo.Context) string {
	if a, ok := ActorFrom(c); ok {
		return strconv.FormatUint(a.ID, 10)
	}
	return "anon"
}
