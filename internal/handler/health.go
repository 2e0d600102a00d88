package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness and the reachability of MySQL and Redis.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Health returns "ok" while the process is serving.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready pings the dependencies.  Redis is optional: a nil client is
// reported as disabled and does not fail readiness.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := echo.Map{"mysql": "ok", "redis": "disabled"}
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["mysql"] = err.Error()
		}
	}
	if h.Redis != nil {
		body["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			body["redis"] = err.Error()
		}
	}
	return c.JSON(status, body)
}
