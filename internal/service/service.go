// Package service holds the ticketing business rules: event approval,
// seat allocation, gate check-in, reviews and account administration.
// Services depend on the narrow store interfaces below, which the MySQL
// repositories satisfy and tests fake in memory.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/clock"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/notify"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// EventStore persists events and their seat classes.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	List(ctx context.Context, f repository.EventFilter) ([]model.Event, error)
	UpdateStatus(ctx context.Context, id uint64, from, to model.EventStatus) error
}

// BookingStore persists tickets and allocates seats.
type BookingStore interface {
	CreateBatch(ctx context.Context, req repository.AllocationRequest) ([]model.Booking, error)
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	GetByTicketID(ctx context.Context, ticketID string) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id uint64, from, to model.BookingStatus, reason string, at time.Time) error
	ListByBuyer(ctx context.Context, buyerID uint64) ([]model.Booking, error)
	ListByEvent(ctx context.Context, eventID uint64) ([]model.Booking, error)
	HasActiveBooking(ctx context.Context, eventID, userID uint64) (bool, error)
}

// UserStore is the account data services need.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	SetKYC(ctx context.Context, id uint64, from, to model.KYCStatus, document string) error
	SetBlocked(ctx context.Context, id uint64, blocked bool) error
	TopUp(ctx context.Context, id uint64, amount decimal.Decimal) (decimal.Decimal, error)
}

// TokenRevoker ends every session of a user.
type TokenRevoker interface {
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// ReviewStore persists reviews.
type ReviewStore interface {
	Create(ctx context.Context, r *model.Review) error
	ListByEvent(ctx context.Context, eventID uint64) ([]model.Review, error)
}

// Column widths of the free-text fields.
const (
	maxTitleLen     = 200
	maxCategoryLen  = 60
	maxClassNameLen = 60
	maxAttendeeLen  = 120
	maxReasonLen    = 255
	maxDocumentLen  = 512
)

// checkLen rejects v when it does not fit a column of limit characters.
func checkLen(field, v string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return fmt.Errorf("%w: %s is longer than %d characters", model.ErrValidation, field, limit)
	}
	return nil
}

// Options carries the collaborators shared by every service.  Zero values
// fall back to the system clock, a 3s timeout, the default logger and a
// notifier that discards.
type Options struct {
	Clock    clock.Clock
	Timeout  time.Duration
	Logger   *slog.Logger
	Notifier notify.Publisher
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.NewSystem()
	}
	if o.Timeout <= 0 {
		o.Timeout = 3 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Notifier == nil {
		o.Notifier = notify.Discard{}
	}
	return o
}

// bound applies the request timeout.  Expiry surfaces as
// context.DeadlineExceeded, which handlers report as retryable.
func (o Options) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.Timeout)
}
