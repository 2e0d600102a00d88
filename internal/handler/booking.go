package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type BookingHandler struct {
	Bookings *service.BookingService
	Gate     *service.GateService
}

func NewBookingHandler(b *service.BookingService, g *service.GateService) *BookingHandler {
	return &BookingHandler{Bookings: b, Gate: g}
}

type createBookingReq struct {
	EventID       uint64   `json:"event_id"`
	SeatClass     string   `json:"seat_class"`
	Quantity      int      `json:"quantity"`
	AttendeeNames []string `json:"attendee_names"`
}

type cancelReq struct {
	Reason string `json:"reason"`
}

type bookingStatusReq struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type verifyReq struct {
	TicketID string `json:"ticketId"`
}

// Create buys Quantity tickets in one seat class.  Seat labels and ticket
// ids are assigned by the server.
func (h *BookingHandler) Create(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.EventID == 0 {
		return badRequest(c, "event_id required")
	}
	tickets, err := h.Bookings.Create(c.Request().Context(), service.CreateBookingInput{
		EventID:       req.EventID,
		BuyerID:       a.ID,
		SeatClass:     req.SeatClass,
		Quantity:      req.Quantity,
		AttendeeNames: req.AttendeeNames,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"bookings": tickets})
}

// ListMine returns the caller's tickets, newest first.
func (h *BookingHandler) ListMine(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.Bookings.ListByBuyer(c.Request().Context(), a.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": nonNilBookings(list)})
}

func (h *BookingHandler) Get(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.Bookings.Get(c.Request().Context(), id, a)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel cancels one of the caller's tickets.  The body is optional.
func (h *BookingHandler) Cancel(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var req cancelReq
	_ = c.Bind(&req)
	b, err := h.Bookings.Cancel(c.Request().Context(), id, strings.TrimSpace(req.Reason), a)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListByEvent returns the tickets of an event the organizer owns.
func (h *BookingHandler) ListByEvent(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	list, err := h.Bookings.ListByEvent(c.Request().Context(), id, a)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": nonNilBookings(list)})
}

// UpdateStatus lets an organizer confirm, cancel or check in a ticket of
// their event.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var req bookingStatusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	to, err := model.ParseBookingStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		return respondError(c, err)
	}
	b, err := h.Bookings.UpdateStatus(c.Request().Context(), id, to, strings.TrimSpace(req.Reason), a)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Verify checks a scanned ticket in at the gate.
func (h *BookingHandler) Verify(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.TicketID) == "" {
		return badRequest(c, "ticketId required")
	}
	adm, err := h.Gate.Verify(c.Request().Context(), req.TicketID, a)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"admitted": true, "ticket": adm})
}

func nonNilBookings(list []model.Booking) []model.Booking {
	if list == nil {
		return []model.Booking{}
	}
	return list
}
