// Package notify fans organizer notifications out to live dashboards, a
// bounded Redis activity feed and a durable RabbitMQ log.
//
// Delivery is fire-and-forget: Dispatch never blocks the caller on a sink
// and a subscriber that is not connected simply misses the message.
package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind names the event carried by a notification.  The values are the
// websocket event names dashboards listen for.
type Kind string

const (
	KindNewBooking   Kind = "newBooking"
	KindCheckIn      Kind = "checkInAlert"
	KindEventCreated Kind = "eventCreated"
	KindGeneric      Kind = "notification"
)

// Notification is one message addressed to an organizer room.
type Notification struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	OrganizerID uint64         `json:"organizer_id"`
	EventID     uint64         `json:"event_id,omitempty"`
	BookingID   uint64         `json:"booking_id,omitempty"`
	Message     string         `json:"message"`
	Data        map[string]any `json:"data,omitempty"`
	At          time.Time      `json:"at"`
}

// New builds a notification with a fresh id.
func New(kind Kind, organizerID uint64, message string, at time.Time) Notification {
	return Notification{
		ID:          uuid.NewString(),
		Kind:        kind,
		OrganizerID: organizerID,
		Message:     message,
		At:          at.UTC(),
	}
}

// Topic returns the room name of an organizer.
func Topic(organizerID uint64) string {
	return "organizer." + strconv.FormatUint(organizerID, 10)
}

// Sink is one delivery target.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// Publisher is what services depend on.
type Publisher interface {
	Dispatch(n Notification)
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Dispatch(Notification) {}
