package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MessagePublisher is satisfied by *queue.Publisher.
type MessagePublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// BrokerSink forwards notifications to RabbitMQ, keyed by kind.
type BrokerSink struct {
	pub MessagePublisher
}

func NewBrokerSink(pub MessagePublisher) *BrokerSink { return &BrokerSink{pub: pub} }

func (b *BrokerSink) Name() string { return "broker" }

func (b *BrokerSink) Deliver(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return b.pub.Publish(ctx, string(n.Kind), body)
}

// LogWriter appends consumed notifications to a file, one line each.  Its
// Handle method is the queue consumer's handler.
type LogWriter struct {
	path string
	mu   sync.Mutex
}

func NewLogWriter(path string) *LogWriter { return &LogWriter{path: path} }

// Handle decodes one broker message and appends it to the log file.
func (w *LogWriter) Handle(body []byte) error {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] %s | organizer_id=%d | event_id=%d | booking_id=%d | id=%s | %q\n",
		n.At.UTC().Format("2006-01-02T15:04:05Z07:00"), n.Kind, n.OrganizerID, n.EventID, n.BookingID, n.ID, n.Message)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
