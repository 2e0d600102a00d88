package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type EventHandler struct {
	Events *service.EventService
}

func NewEventHandler(s *service.EventService) *EventHandler {
	return &EventHandler{Events: s}
}

type createEventReq struct {
	Title    string                     `json:"title"`
	Category string                     `json:"category"`
	StartsAt time.Time                  `json:"starts_at"`
	VenueID  string                     `json:"venue_id"`
	SeatMap  map[string]int             `json:"seat_map"`
	Prices   map[string]decimal.Decimal `json:"prices"`
}

type statusReq struct {
	Status string `json:"status"`
}

// Create stores a pending event owned by the calling organizer.
func (h *EventHandler) Create(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	e, err := h.Events.Create(c.Request().Context(), service.CreateEventInput{
		OrganizerID: a.ID,
		Title:       req.Title,
		Category:    req.Category,
		StartsAt:    req.StartsAt,
		VenueID:     req.VenueID,
		SeatMap:     req.SeatMap,
		Prices:      req.Prices,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

// ListPublic returns approved events, optionally filtered by ?category=.
func (h *EventHandler) ListPublic(c echo.Context) error {
	list, err := h.Events.List(c.Request().Context(), repository.EventFilter{
		Status:   model.EventApproved,
		Category: strings.TrimSpace(c.QueryParam("category")),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": nonNilEvents(list)})
}

// ListMine returns every event of the calling organizer, any status.
func (h *EventHandler) ListMine(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	f := repository.EventFilter{OrganizerID: a.ID}
	if s := c.QueryParam("status"); s != "" {
		st, err := model.ParseEventStatus(s)
		if err != nil {
			return respondError(c, err)
		}
		f.Status = st
	}
	list, err := h.Events.List(c.Request().Context(), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": nonNilEvents(list)})
}

// ListAdmin returns events for moderation.  ?status= defaults to pending.
func (h *EventHandler) ListAdmin(c echo.Context) error {
	st := model.EventPending
	if s := c.QueryParam("status"); s != "" {
		parsed, err := model.ParseEventStatus(s)
		if err != nil {
			return respondError(c, err)
		}
		st = parsed
	}
	list, err := h.Events.List(c.Request().Context(), repository.EventFilter{Status: st})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": nonNilEvents(list)})
}

// Get returns one event.  Unapproved events are only visible to their
// organizer and admins; the route is public so the caller may be anonymous.
func (h *EventHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	viewer, _ := middleware.ActorFrom(c)
	e, err := h.Events.Get(c.Request().Context(), id, viewer)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// SetStatus applies an approval-table transition.
func (h *EventHandler) SetStatus(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	to, err := model.ParseEventStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		return respondError(c, err)
	}
	e, err := h.Events.SetStatus(c.Request().Context(), id, to, a)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

func nonNilEvents(list []model.Event) []model.Event {
	if list == nil {
		return []model.Event{}
	}
	return list
}
