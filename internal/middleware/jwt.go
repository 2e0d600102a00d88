// Package middleware holds the echo middleware shared by every route
// group: JWT authentication, role gates, rate limiting and response
// caching.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// JWTAuth validates the access token and stores the caller's id and role
// in the echo context.  The token is read from the Authorization header or,
// for browser websocket upgrades that cannot set headers, from the
// access_token query parameter.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			id, _ := claims.UserID()
			c.Set(ctxUserID, id)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}

// OptionalJWT stores the caller when a valid token is present and lets
// anonymous requests through.  Used on public routes whose response
// depends on the viewer.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := bearer(c); raw != "" {
				if claims, err := utils.ParseAccessToken(secret, raw); err == nil {
					id, _ := claims.UserID()
					c.Set(ctxUserID, id)
					c.Set(ctxRole, claims.Role)
				}
			}
			return next(c)
		}
	}
}

func bearer(c echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.QueryParam("access_token")
}
