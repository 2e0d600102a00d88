package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a single ticket.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCheckedIn BookingStatus = "checked_in"
	BookingCancelled BookingStatus = "cancelled"
)

// ParseBookingStatus validates a status string received from a client.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch st := BookingStatus(s); st {
	case BookingPending, BookingConfirmed, BookingCheckedIn, BookingCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown booking status %q", ErrValidation, s)
}

// checked_in and cancelled are terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCheckedIn, BookingCancelled},
}

// CanTransition reports whether a booking may move from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, n := range bookingTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// HoldsSeat reports whether a booking in this status occupies its seat label.
func (s BookingStatus) HoldsSeat() bool {
	return s == BookingConfirmed || s == BookingCheckedIn
}

// Booking is one ticket for one seat.
//
// Fields:
//
//	ID           – primary key.
//	TicketID     – opaque identifier printed on the ticket and QR code.
//	EventID      – event the seat belongs to.
//	BuyerID      – purchasing user.
//	SeatClass    – ticket class name.
//	SeatLabel    – row + number, unique per event.
//	PricePaid    – class price at purchase time.
//	AttendeeName – name rendered at the gate.
//	Status       – lifecycle state.
//	CancelReason – reason recorded on cancellation.
//	PurchasedAt  – shared by all tickets of one purchase.
//	CheckedInAt  – set by gate verification.
type Booking struct {
	ID           uint64          `json:"id"`
	TicketID     string          `json:"ticket_id"`
	EventID      uint64          `json:"event_id"`
	BuyerID      uint64          `json:"buyer_id"`
	SeatClass    string          `json:"seat_class"`
	SeatLabel    string          `json:"seat_label"`
	PricePaid    decimal.Decimal `json:"price_paid"`
	AttendeeName string          `json:"attendee_name"`
	Status       BookingStatus   `json:"status"`
	CancelReason string          `json:"cancel_reason,omitempty"`
	PurchasedAt  time.Time       `json:"purchased_at"`
	CheckedInAt  *time.Time      `json:"checked_in_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SeatLabel converts a zero-based per-event seat index into a label such as
// "A-12".  Rows are lettered A..Z, AA, AB, ... with perRow seats each.
func SeatLabel(index, perRow int) string {
	if perRow <= 0 {
		perRow = 1
	}
	return rowLabel(index/perRow) + "-" + strconv.Itoa(index%perRow+1)
}

// rowLabel converts a zero-based index to an alphabetical row label like A, B, AA.
func rowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}
