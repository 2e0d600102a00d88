package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// AllocationRequest describes one purchase of Quantity seats in a class.
type AllocationRequest struct {
	EventID       uint64
	BuyerID       uint64
	SeatClass     string
	Quantity      int
	SeatsPerRow   int
	AttendeeNames []string // len 0 or Quantity
	PurchasedAt   time.Time
	NewTicketID   func() string
}

// BookingRepo persists tickets.  Seat labels are allocated from the
// per-event counter events.next_seat while the event row is locked, and
// UNIQUE(event_id, seat_label) backs the allocation up.
type BookingRepo struct{ db *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, ticket_id, event_id, buyer_id, seat_class, seat_label, price_paid, attendee_name, status, cancel_reason, purchased_at, checked_in_at, created_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var (
		b         model.Booking
		checkedIn sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.TicketID, &b.EventID, &b.BuyerID, &b.SeatClass, &b.SeatLabel,
		&b.PricePaid, &b.AttendeeName, &b.Status, &b.CancelReason, &b.PurchasedAt, &checkedIn, &b.CreatedAt); err != nil {
		return nil, err
	}
	if checkedIn.Valid {
		t := checkedIn.Time
		b.CheckedInAt = &t
	}
	return &b, nil
}

// CreateBatch allocates req.Quantity consecutive seats and inserts one
// confirmed booking per seat, all in a single transaction.
//
// Errors:
//   - model.ErrNotFound when the event does not exist.
//   - model.ErrValidation when the event is not approved or the class is unknown.
//   - model.ErrSoldOut when the class has fewer than Quantity seats left.
//   - model.ErrConflict on a seat label or ticket id collision.
func (r *BookingRepo) CreateBatch(ctx context.Context, req AllocationRequest) ([]model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer rollback(tx)

	var (
		status model.EventStatus
		next   int
	)
	err = tx.QueryRowContext(ctx,
		"SELECT status, next_seat FROM events WHERE id=? FOR UPDATE", req.EventID).Scan(&status, &next)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("event %d", req.EventID))
	}
	if status != model.EventApproved {
		return nil, fmt.Errorf("%w: event %d is %s and not open for booking", model.ErrValidation, req.EventID, status)
	}

	var (
		allotted, sold int
		price          decimal.Decimal
	)
	err = tx.QueryRowContext(ctx,
		"SELECT allotted, sold, price FROM event_seat_classes WHERE event_id=? AND name=? FOR UPDATE",
		req.EventID, req.SeatClass).Scan(&allotted, &sold, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: event %d has no seat class %q", model.ErrValidation, req.EventID, req.SeatClass)
	}
	if err != nil {
		return nil, err
	}
	if sold+req.Quantity > allotted {
		return nil, fmt.Errorf("%w: %d of %d %q seats left", model.ErrSoldOut, allotted-sold, allotted, req.SeatClass)
	}

	const ins = `INSERT INTO bookings (ticket_id, event_id, buyer_id, seat_class, seat_label, price_paid, attendee_name, status, purchased_at)
	             VALUES (?,?,?,?,?,?,?,?,?)`
	out := make([]model.Booking, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		b := model.Booking{
			TicketID:    req.NewTicketID(),
			EventID:     req.EventID,
			BuyerID:     req.BuyerID,
			SeatClass:   req.SeatClass,
			SeatLabel:   model.SeatLabel(next+i, req.SeatsPerRow),
			PricePaid:   price,
			Status:      model.BookingConfirmed,
			PurchasedAt: req.PurchasedAt.UTC(),
			CreatedAt:   req.PurchasedAt.UTC(),
		}
		if len(req.AttendeeNames) > 0 {
			b.AttendeeName = req.AttendeeNames[i]
		}
		res, err := tx.ExecContext(ctx, ins, b.TicketID, b.EventID, b.BuyerID, b.SeatClass, b.SeatLabel,
			b.PricePaid, b.AttendeeName, b.Status, b.PurchasedAt)
		if err != nil {
			return nil, translate(err, "seat "+b.SeatLabel)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		b.ID = uint64(id)
		out = append(out, b)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE event_seat_classes SET sold=sold+? WHERE event_id=? AND name=?",
		req.Quantity, req.EventID, req.SeatClass); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE events SET next_seat=next_seat+? WHERE id=?", req.Quantity, req.EventID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches a booking by primary key.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id=?", id))
	return b, translate(err, fmt.Sprintf("booking %d", id))
}

// GetByTicketID fetches a booking by the identifier printed on the ticket.
func (r *BookingRepo) GetByTicketID(ctx context.Context, ticketID string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE ticket_id=?", ticketID))
	return b, translate(err, fmt.Sprintf("ticket %q", ticketID))
}

// UpdateStatus moves a booking from -> to.  Cancelling records reason;
// checking in records at.  When the stored status is no longer from the
// update is refused with model.ErrConflict.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.BookingStatus, reason string, at time.Time) error {
	q := "UPDATE bookings SET status=?"
	args := []any{to}
	switch to {
	case model.BookingCancelled:
		q += ", cancel_reason=?"
		args = append(args, reason)
	case model.BookingCheckedIn:
		q += ", checked_in_at=?"
		args = append(args, at.UTC())
	}
	q += " WHERE id=? AND status=?"
	args = append(args, id, from)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var cur model.BookingStatus
	if err := r.db.QueryRowContext(ctx, "SELECT status FROM bookings WHERE id=?", id).Scan(&cur); err != nil {
		return translate(err, fmt.Sprintf("booking %d", id))
	}
	return fmt.Errorf("%w: booking %d is %s, not %s", model.ErrConflict, id, cur, from)
}

// ListByBuyer returns the buyer's bookings, newest purchase first.
func (r *BookingRepo) ListByBuyer(ctx context.Context, buyerID uint64) ([]model.Booking, error) {
	return r.list(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE buyer_id=? ORDER BY purchased_at DESC, id", buyerID)
}

// ListByEvent returns every booking of an event in seat allocation order.
func (r *BookingRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Booking, error) {
	return r.list(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE event_id=? ORDER BY id", eventID)
}

// HasActiveBooking reports whether the user holds a non-cancelled ticket
// for the event.
func (r *BookingRepo) HasActiveBooking(ctx context.Context, eventID, userID uint64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM bookings WHERE event_id=? AND buyer_id=? AND status<>?)",
		eventID, userID, model.BookingCancelled).Scan(&ok)
	return ok, err
}

func (r *BookingRepo) list(ctx context.Context, q string, arg any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
