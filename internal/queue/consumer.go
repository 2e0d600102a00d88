// Package queue moves notification messages through RabbitMQ: a lazy
// publisher for the request path and a reconnecting background consumer.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body.  A non-nil error rejects the
// message without requeueing it.
type Handler func(body []byte) error

// ConsumerConfig names the broker objects a consumer reads from.
type ConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
}

// StartConsumer declares the exchange and queue and consumes until ctx is
// done, reconnecting with exponential backoff (1s doubling up to 30s)
// whenever the broker goes away.  It returns ctx.Err().
func StartConsumer(ctx context.Context, cfg ConsumerConfig, handle Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 50
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			logger.Warn("notification consumer: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, cfg, handle, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("notification consumer: loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg ConsumerConfig, handle Handler, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		logger.Warn("notification consumer: set QoS failed", "err", err)
	}
	if err := declare(ch, cfg.Exchange, cfg.Queue); err != nil {
		return err
	}
	msgs, err := ch.Consume(cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handle(d.Body); err != nil {
				logger.Error("notification consumer: handle message failed", "err", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
