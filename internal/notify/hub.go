package notify

import (
	"context"

	"github.com/juju/pubsub/v2"
)

// Hub is the in-process room registry.  Each organizer room is a pubsub
// topic; websocket connections subscribe to the room they joined.
type Hub struct {
	hub *pubsub.SimpleHub
}

func NewHub() *Hub {
	return &Hub{hub: pubsub.NewSimpleHub(nil)}
}

func (h *Hub) Name() string { return "hub" }

// Deliver publishes n on its organizer's topic.  SimpleHub hands the
// message to each subscriber on its own goroutine, so this never waits.
func (h *Hub) Deliver(_ context.Context, n Notification) error {
	_ = h.hub.Publish(Topic(n.OrganizerID), n)
	return nil
}

// Subscribe registers fn for the organizer's room and returns the
// function that unsubscribes it.
func (h *Hub) Subscribe(organizerID uint64, fn func(Notification)) func() {
	return h.hub.Subscribe(Topic(organizerID), func(_ string, data interface{}) {
		if n, ok := data.(Notification); ok {
			fn(n)
		}
	})
}
