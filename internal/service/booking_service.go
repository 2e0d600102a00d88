package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/notify"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// GuestName is printed on tickets bought without attendee names.
const GuestName = "Guest"

type BookingService struct {
	bookings    BookingStore
	events      EventStore
	users       UserStore
	opt         Options
	seatsPerRow int
	maxTickets  int
	newTicketID func() string
}

func NewBookingService(bookings BookingStore, events EventStore, users UserStore, seatsPerRow, maxTickets int, opt Options) *BookingService {
	if seatsPerRow <= 0 {
		seatsPerRow = 20
	}
	if maxTickets <= 0 {
		maxTickets = 10
	}
	return &BookingService{
		bookings:    bookings,
		events:      events,
		users:       users,
		opt:         opt.withDefaults(),
		seatsPerRow: seatsPerRow,
		maxTickets:  maxTickets,
		newTicketID: uuid.NewString,
	}
}

// CreateBookingInput requests Quantity seats in one class.  AttendeeNames
// is either empty or has exactly Quantity entries.
type CreateBookingInput struct {
	EventID       uint64
	BuyerID       uint64
	SeatClass     string
	Quantity      int
	AttendeeNames []string
}

// Create issues Quantity confirmed tickets with server-allocated seat
// labels and ticket ids.  A seat collision reported by the store is
// retried once; a second collision is returned as model.ErrConflict.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) ([]model.Booking, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	tickets, err := s.create(ctx, in)
	if err != nil {
		metrics.Booking(errorKind(err), 0)
		return nil, err
	}
	metrics.Booking("ok", len(tickets))
	return tickets, nil
}

func (s *BookingService) create(ctx context.Context, in CreateBookingInput) ([]model.Booking, error) {
	if in.Quantity < 1 || in.Quantity > s.maxTickets {
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d", model.ErrValidation, s.maxTickets)
	}
	if n := len(in.AttendeeNames); n != 0 && n != in.Quantity {
		return nil, fmt.Errorf("%w: %d attendee names for %d tickets", model.ErrValidation, n, in.Quantity)
	}
	in.SeatClass = strings.TrimSpace(in.SeatClass)
	if in.SeatClass == "" {
		in.SeatClass = model.DefaultSeatClass
	}
	names := make([]string, in.Quantity)
	for i := range names {
		names[i] = GuestName
		if i < len(in.AttendeeNames) {
			if n := strings.TrimSpace(in.AttendeeNames[i]); n != "" {
				if err := checkLen("attendee name", n, maxAttendeeLen); err != nil {
					return nil, err
				}
				names[i] = n
			}
		}
	}

	buyer, err := s.users.GetByID(ctx, in.BuyerID)
	if err != nil {
		return nil, err
	}
	if buyer.Blocked {
		return nil, fmt.Errorf("%w: account is blocked", model.ErrForbidden)
	}
	e, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EventApproved {
		return nil, fmt.Errorf("%w: event %d is %s and not open for booking", model.ErrValidation, e.ID, e.Status)
	}
	if !e.StartsAt.After(s.opt.Clock.Now()) {
		return nil, fmt.Errorf("%w: event %d has already started", model.ErrValidation, e.ID)
	}
	if _, ok := e.Class(in.SeatClass); !ok {
		return nil, fmt.Errorf("%w: event %d has no seat class %q", model.ErrValidation, e.ID, in.SeatClass)
	}

	req := repository.AllocationRequest{
		EventID:       e.ID,
		BuyerID:       buyer.ID,
		SeatClass:     in.SeatClass,
		Quantity:      in.Quantity,
		SeatsPerRow:   s.seatsPerRow,
		AttendeeNames: names,
		PurchasedAt:   s.opt.Clock.Now(),
		NewTicketID:   s.newTicketID,
	}
	tickets, err := s.bookings.CreateBatch(ctx, req)
	if errors.Is(err, model.ErrConflict) {
		metrics.SeatConflict()
		s.opt.Logger.Warn("seat allocation conflict, retrying", "event_id", e.ID, "err", err)
		tickets, err = s.bookings.CreateBatch(ctx, req)
		if errors.Is(err, model.ErrConflict) {
			metrics.SeatConflict()
		}
	}
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(tickets))
	for i, t := range tickets {
		labels[i] = t.SeatLabel
	}
	n := notify.New(notify.KindNewBooking, e.OrganizerID,
		fmt.Sprintf("%d %s ticket(s) booked for %q", len(tickets), in.SeatClass, e.Title), req.PurchasedAt)
	n.EventID = e.ID
	n.BookingID = tickets[0].ID
	n.Data = map[string]any{"quantity": len(tickets), "seat_class": in.SeatClass, "seats": labels}
	s.opt.Notifier.Dispatch(n)
	return tickets, nil
}

// Cancel cancels a ticket on behalf of its buyer, the event organizer or an
// admin.  The seat label stays consumed.
func (s *BookingService) Cancel(ctx context.Context, bookingID uint64, reason string, actor model.Actor) (*model.Booking, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	b, e, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.ID != b.BuyerID && !actor.IsAdmin() && !actor.Owns(e.OrganizerID) {
		return nil, fmt.Errorf("%w: booking %d", model.ErrForbidden, b.ID)
	}
	return s.transition(ctx, b, e, model.BookingCancelled, reason, actor)
}

// UpdateStatus is the organizer's status control over a booking.
func (s *BookingService) UpdateStatus(ctx context.Context, bookingID uint64, to model.BookingStatus, reason string, actor model.Actor) (*model.Booking, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	b, e, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(e.OrganizerID) {
		return nil, fmt.Errorf("%w: booking %d belongs to another organizer", model.ErrForbidden, b.ID)
	}
	return s.transition(ctx, b, e, to, reason, actor)
}

func (s *BookingService) transition(ctx context.Context, b *model.Booking, e *model.Event, to model.BookingStatus, reason string, actor model.Actor) (*model.Booking, error) {
	if !b.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: booking %s -> %s", model.ErrInvalidTransition, b.Status, to)
	}
	reason = strings.TrimSpace(reason)
	if err := checkLen("reason", reason, maxReasonLen); err != nil {
		return nil, err
	}
	now := s.opt.Clock.Now()
	if err := s.bookings.UpdateStatus(ctx, b.ID, b.Status, to, reason, now); err != nil {
		return nil, err
	}
	b.Status = to
	switch to {
	case model.BookingCancelled:
		b.CancelReason = reason
	case model.BookingCheckedIn:
		b.CheckedInAt = &now
	}
	s.opt.Logger.Info("booking status changed", "booking_id", b.ID, "status", to, "actor_id", actor.ID)

	n := notify.New(notify.KindGeneric, e.OrganizerID,
		fmt.Sprintf("Booking %s for %q is now %s", b.SeatLabel, e.Title, to), now)
	if to == model.BookingCheckedIn {
		// A manual check-in alerts the room like a gate scan does.
		n = notify.New(notify.KindCheckIn, e.OrganizerID,
			fmt.Sprintf("%s checked in at %s for %q", b.AttendeeName, b.SeatLabel, e.Title), now)
		n.Data = map[string]any{"ticket_id": b.TicketID, "seat_label": b.SeatLabel, "manual": true}
	}
	n.EventID, n.BookingID = e.ID, b.ID
	s.opt.Notifier.Dispatch(n)
	return b, nil
}

// Get returns a booking to its buyer, the event organizer or an admin.
func (s *BookingService) Get(ctx context.Context, bookingID uint64, actor model.Actor) (*model.Booking, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	b, e, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.ID != b.BuyerID && !actor.IsAdmin() && !actor.Owns(e.OrganizerID) {
		return nil, fmt.Errorf("%w: booking %d", model.ErrNotFound, b.ID)
	}
	return b, nil
}

// ListByBuyer returns the buyer's tickets.
func (s *BookingService) ListByBuyer(ctx context.Context, buyerID uint64) ([]model.Booking, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()
	return s.bookings.ListByBuyer(ctx, buyerID)
}

// ListByEvent returns every ticket of an event to its organizer or an admin.
func (s *BookingService) ListByEvent(ctx context.Context, eventID uint64, actor model.Actor) ([]model.Booking, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(e.OrganizerID) {
		return nil, fmt.Errorf("%w: event %d belongs to another organizer", model.ErrForbidden, e.ID)
	}
	return s.bookings.ListByEvent(ctx, eventID)
}

func (s *BookingService) load(ctx context.Context, bookingID uint64) (*model.Booking, *model.Event, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	e, err := s.events.GetByID(ctx, b.EventID)
	if err != nil {
		return nil, nil, err
	}
	return b, e, nil
}

// errorKind labels an error for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrValidation):
		return "validation"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrForbidden):
		return "forbidden"
	case errors.Is(err, model.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	case errors.Is(err, model.ErrSoldOut):
		return "sold_out"
	case errors.Is(err, model.ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, model.ErrCancelled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "internal"
}
