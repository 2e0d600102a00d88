package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/notify"
)

// GateService redeems tickets at event entry.
type GateService struct {
	bookings BookingStore
	events   EventStore
	opt      Options
}

func NewGateService(bookings BookingStore, events EventStore, opt Options) *GateService {
	return &GateService{bookings: bookings, events: events, opt: opt.withDefaults()}
}

// Admission is what the gate UI renders after a successful check-in.
type Admission struct {
	TicketID     string    `json:"ticket_id"`
	BookingID    uint64    `json:"booking_id"`
	AttendeeName string    `json:"attendee_name"`
	SeatLabel    string    `json:"seat_label"`
	SeatClass    string    `json:"seat_class"`
	EventID      uint64    `json:"event_id"`
	EventTitle   string    `json:"event_title"`
	CheckedInAt  time.Time `json:"checked_in_at"`
}

// Verify checks a ticket in.  A ticket is admitted at most once: a second
// verification returns model.ErrAlreadyUsed without touching the booking.
func (s *GateService) Verify(ctx context.Context, ticketID string, actor model.Actor) (*Admission, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	a, err := s.verify(ctx, strings.TrimSpace(ticketID), actor)
	if err != nil {
		metrics.CheckIn(errorKind(err))
		return nil, err
	}
	metrics.CheckIn("ok")
	return a, nil
}

func (s *GateService) verify(ctx context.Context, ticketID string, actor model.Actor) (*Admission, error) {
	if ticketID == "" {
		return nil, fmt.Errorf("%w: ticket id is required", model.ErrValidation)
	}
	b, err := s.bookings.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	e, err := s.events.GetByID(ctx, b.EventID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(e.OrganizerID) {
		return nil, fmt.Errorf("%w: ticket belongs to another organizer's event", model.ErrForbidden)
	}
	if err := admissible(b); err != nil {
		return nil, err
	}

	now := s.opt.Clock.Now()
	err = s.bookings.UpdateStatus(ctx, b.ID, b.Status, model.BookingCheckedIn, "", now)
	if errors.Is(err, model.ErrConflict) {
		// Another gate got there first; report what it did.
		cur, gerr := s.bookings.GetByID(ctx, b.ID)
		if gerr != nil {
			return nil, gerr
		}
		if aerr := admissible(cur); aerr != nil {
			return nil, aerr
		}
	}
	if err != nil {
		return nil, err
	}

	n := notify.New(notify.KindCheckIn, e.OrganizerID,
		fmt.Sprintf("%s checked in at %s for %q", b.AttendeeName, b.SeatLabel, e.Title), now)
	n.EventID, n.BookingID = e.ID, b.ID
	n.Data = map[string]any{"ticket_id": b.TicketID, "seat_label": b.SeatLabel}
	s.opt.Notifier.Dispatch(n)

	return &Admission{
		TicketID:     b.TicketID,
		BookingID:    b.ID,
		AttendeeName: b.AttendeeName,
		SeatLabel:    b.SeatLabel,
		SeatClass:    b.SeatClass,
		EventID:      e.ID,
		EventTitle:   e.Title,
		CheckedInAt:  now,
	}, nil
}

func admissible(b *model.Booking) error {
	switch b.Status {
	case model.BookingConfirmed:
		return nil
	case model.BookingCheckedIn:
		return fmt.Errorf("%w: ticket %s checked in at %s", model.ErrAlreadyUsed, b.TicketID, checkedInAt(b))
	case model.BookingCancelled:
		return fmt.Errorf("%w: ticket %s", model.ErrCancelled, b.TicketID)
	}
	return fmt.Errorf("%w: ticket %s is %s", model.ErrInvalidTransition, b.TicketID, b.Status)
}

func checkedInAt(b *model.Booking) string {
	if b.CheckedInAt == nil {
		return "an earlier scan"
	}
	return b.CheckedInAt.UTC().Format(time.RFC3339)
}
