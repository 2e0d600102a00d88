package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventStatus is the approval state of an event.
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventApproved  EventStatus = "approved"
	EventRejected  EventStatus = "rejected"
	EventCancelled EventStatus = "cancelled"
)

// ParseEventStatus validates a status string received from a client.
func ParseEventStatus(s string) (EventStatus, error) {
	switch st := EventStatus(s); st {
	case EventPending, EventApproved, EventRejected, EventCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown event status %q", ErrValidation, s)
}

// eventRule describes who may drive one edge of the event state machine.
type eventRule struct {
	admin     bool
	organizer bool
}

// Rejected events are terminal.
var eventTransitions = map[EventStatus]map[EventStatus]eventRule{
	EventPending: {
		EventApproved: {admin: true},
		EventRejected: {admin: true},
	},
	EventApproved: {
		EventCancelled: {admin: true, organizer: true},
	},
	EventCancelled: {
		EventPending: {organizer: true},
	},
}

// CanTransition reports whether the table has an edge from s to next.
func (s EventStatus) CanTransition(next EventStatus) bool {
	_, ok := eventTransitions[s][next]
	return ok
}

// CheckEventTransition validates a transition for the given actor.  The
// organizer must own the event (organizerID) to use organizer edges.
func CheckEventTransition(from, to EventStatus, actor Actor, organizerID uint64) error {
	rule, ok := eventTransitions[from][to]
	if !ok {
		return fmt.Errorf("%w: event %s -> %s", ErrInvalidTransition, from, to)
	}
	switch {
	case rule.admin && actor.IsAdmin():
		return nil
	case rule.organizer && actor.Owns(organizerID):
		return nil
	}
	return fmt.Errorf("%w: %s may not move event %s -> %s", ErrForbidden, actor.Role, from, to)
}

// SeatClass is one ticket tier of an event with its allotment and price.
type SeatClass struct {
	Name     string          `json:"name"`
	Allotted int             `json:"allotted"`
	Price    decimal.Decimal `json:"price"`
	Sold     int             `json:"sold"`
}

// Remaining returns the number of unsold seats in the class.
func (c SeatClass) Remaining() int { return c.Allotted - c.Sold }

// DefaultSeatClass is used when an organizer does not split the venue.
const DefaultSeatClass = "General"

// Event mirrors a row of the `events` table plus its seat classes.
//
// Fields:
//
//	ID          – primary key.
//	OrganizerID – owning organizer.
//	Title       – display title.
//	Category    – free-form category (Music, Comedy, ...).
//	StartsAt    – UTC start time.
//	VenueID     – catalog venue id.
//	VenueName   – venue display name at creation time.
//	Capacity    – venue capacity at creation time.
//	Status      – approval status.
//	Classes     – seat map: ticket class allotments and prices.
type Event struct {
	ID          uint64      `json:"id"`
	OrganizerID uint64      `json:"organizer_id"`
	Title       string      `json:"title"`
	Category    string      `json:"category"`
	StartsAt    time.Time   `json:"starts_at"`
	VenueID     string      `json:"venue_id"`
	VenueName   string      `json:"venue_name"`
	Capacity    int         `json:"capacity"`
	Status      EventStatus `json:"status"`
	Classes     []SeatClass `json:"seat_classes"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// SeatMap returns the class name -> allotment view of the event.
func (e *Event) SeatMap() map[string]int {
	m := make(map[string]int, len(e.Classes))
	for _, c := range e.Classes {
		m[c.Name] = c.Allotted
	}
	return m
}

// Class returns the named seat class.
func (e *Event) Class(name string) (SeatClass, bool) {
	for _, c := range e.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return SeatClass{}, false
}

// TotalAllotted sums the allotments of every class.
func (e *Event) TotalAllotted() int {
	n := 0
	for _, c := range e.Classes {
		n += c.Allotted
	}
	return n
}
