// Package handler contains the echo HTTP handlers.  Handlers bind and
// validate the request shape, call one service operation and translate
// domain errors into JSON responses.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// statusOf maps an error to its HTTP status, machine code and whether the
// client may retry.
func statusOf(err error) (int, string, bool) {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "validation", false
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, "forbidden", false
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found", false
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", false
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, "conflict", true
	case errors.Is(err, model.ErrSoldOut):
		return http.StatusConflict, "sold_out", false
	case errors.Is(err, model.ErrAlreadyUsed):
		return http.StatusConflict, "already_used", false
	case errors.Is(err, model.ErrCancelled):
		return http.StatusGone, "cancelled", false
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout", true
	}
	return http.StatusInternalServerError, "internal", false
}

// respondError writes err as JSON.  Unexpected errors are logged and their
// text is not sent to the client.
func respondError(c echo.Context, err error) error {
	status, code, retry := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
		msg = "internal error"
	}
	return c.JSON(status, errorBody{Error: msg, Code: code, Retryable: retry})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: msg, Code: "validation"})
}

// unauthorized is returned by handlers that need an actor on a route
// missing JWTAuth.
func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Code: "unauthorized"})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
