package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/event-ticketing/internal/metrics"
)

// Dispatcher delivers each notification to every sink concurrently.  Sink
// failures are logged and counted; they never reach the caller.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sinks: sinks, timeout: timeout, log: logger}
}

// Dispatch hands n to every sink and returns immediately.
func (d *Dispatcher) Dispatch(n Notification) {
	for _, s := range d.sinks {
		d.wg.Add(1)
		go func(s Sink) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := s.Deliver(ctx, n); err != nil {
				metrics.Notification(s.Name(), "error")
				d.log.Warn("notification delivery failed",
					"sink", s.Name(), "kind", n.Kind, "organizer_id", n.OrganizerID, "err", err)
				return
			}
			metrics.Notification(s.Name(), "ok")
		}(s)
	}
}

// Wait blocks until in-flight deliveries finish.  Used on shutdown.
func (d *Dispatcher) Wait() { d.wg.Wait() }
