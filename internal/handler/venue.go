package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// ListVenues returns the venue catalog ordered by name.
func ListVenues(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"venues": model.Venues()})
}

// GetVenue returns one venue by id.
func GetVenue(c echo.Context) error {
	v, err := model.LookupVenue(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}
