package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type ReviewHandler struct {
	Reviews *service.ReviewService
}

func NewReviewHandler(s *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{Reviews: s}
}

type createReviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Create stores the caller's review of an event they attended.
func (h *ReviewHandler) Create(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var req createReviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	r, err := h.Reviews.Create(c.Request().Context(), service.CreateReviewInput{
		EventID: id,
		UserID:  a.ID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// List returns an event's reviews with their average rating.
func (h *ReviewHandler) List(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	sum, err := h.Reviews.ListByEvent(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}
