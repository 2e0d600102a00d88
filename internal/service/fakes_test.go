package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/notify"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recordingNotifier) Dispatch(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNotifier) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, len(r.got))
	for i, n := range r.got {
		out[i] = n.Kind
	}
	return out
}

// fakeEvents is an in-memory EventStore.  nextSeat mirrors events.next_seat.
type fakeEvents struct {
	mu       sync.Mutex
	seq      uint64
	events   map[uint64]model.Event
	nextSeat map[uint64]int
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{events: map[uint64]model.Event{}, nextSeat: map[uint64]int{}}
}

func copyEvent(e model.Event) *model.Event {
	e.Classes = append([]model.SeatClass(nil), e.Classes...)
	return &e
}

func (f *fakeEvents) Create(_ context.Context, e *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	e.ID = f.seq
	f.events[e.ID] = *copyEvent(*e)
	return nil
}

func (f *fakeEvents) GetByID(_ context.Context, id uint64) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: event %d", model.ErrNotFound, id)
	}
	return copyEvent(e), nil
}

func (f *fakeEvents) List(_ context.Context, flt repository.EventFilter) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Event
	for _, e := range f.events {
		if flt.Status != "" && e.Status != flt.Status {
			continue
		}
		if flt.Category != "" && e.Category != flt.Category {
			continue
		}
		if flt.OrganizerID != 0 && e.OrganizerID != flt.OrganizerID {
			continue
		}
		out = append(out, *copyEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEvents) UpdateStatus(_ context.Context, id uint64, from, to model.EventStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return fmt.Errorf("%w: event %d", model.ErrNotFound, id)
	}
	if e.Status != from {
		return fmt.Errorf("%w: event %d is %s", model.ErrConflict, id, e.Status)
	}
	e.Status = to
	f.events[id] = e
	return nil
}

// put stores an event directly, bypassing validation.
func (f *fakeEvents) put(e model.Event) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	e.ID = f.seq
	f.events[e.ID] = e
	return e.ID
}

// fakeBookings allocates seats the way the MySQL repository does, under one
// lock standing in for the row lock.
type fakeBookings struct {
	events *fakeEvents

	mu        sync.Mutex
	seq       uint64
	bookings  map[uint64]model.Booking
	conflicts int // number of CreateBatch calls to fail with ErrConflict
	calls     int
}

func newFakeBookings(events *fakeEvents) *fakeBookings {
	return &fakeBookings{events: events, bookings: map[uint64]model.Booking{}}
}

func (f *fakeBookings) CreateBatch(_ context.Context, req repository.AllocationRequest) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events.mu.Lock()
	defer f.events.mu.Unlock()

	f.calls++
	if f.conflicts > 0 {
		f.conflicts--
		return nil, fmt.Errorf("%w: seat taken", model.ErrConflict)
	}
	e, ok := f.events.events[req.EventID]
	if !ok {
		return nil, fmt.Errorf("%w: event %d", model.ErrNotFound, req.EventID)
	}
	if e.Status != model.EventApproved {
		return nil, fmt.Errorf("%w: event not approved", model.ErrValidation)
	}
	ci := -1
	for i, c := range e.Classes {
		if c.Name == req.SeatClass {
			ci = i
		}
	}
	if ci < 0 {
		return nil, fmt.Errorf("%w: no class", model.ErrValidation)
	}
	c := e.Classes[ci]
	if c.Sold+req.Quantity > c.Allotted {
		return nil, fmt.Errorf("%w: %d left", model.ErrSoldOut, c.Remaining())
	}

	next := f.events.nextSeat[e.ID]
	out := make([]model.Booking, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		b := model.Booking{
			TicketID:    req.NewTicketID(),
			EventID:     e.ID,
			BuyerID:     req.BuyerID,
			SeatClass:   req.SeatClass,
			SeatLabel:   model.SeatLabel(next+i, req.SeatsPerRow),
			PricePaid:   c.Price,
			Status:      model.BookingConfirmed,
			PurchasedAt: req.PurchasedAt,
			CreatedAt:   req.PurchasedAt,
		}
		if len(req.AttendeeNames) > 0 {
			b.AttendeeName = req.AttendeeNames[i]
		}
		for _, x := range f.bookings {
			if x.TicketID == b.TicketID || (x.EventID == b.EventID && x.SeatLabel == b.SeatLabel) {
				return nil, fmt.Errorf("%w: duplicate", model.ErrConflict)
			}
		}
		out = append(out, b)
	}
	for i := range out {
		f.seq++
		out[i].ID = f.seq
		f.bookings[f.seq] = out[i]
	}
	e.Classes = append([]model.SeatClass(nil), e.Classes...)
	e.Classes[ci].Sold += req.Quantity
	f.events.events[e.ID] = e
	f.events.nextSeat[e.ID] = next + req.Quantity
	return out, nil
}

func (f *fakeBookings) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %d", model.ErrNotFound, id)
	}
	return &b, nil
}

func (f *fakeBookings) GetByTicketID(_ context.Context, ticketID string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.TicketID == ticketID {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("%w: ticket %q", model.ErrNotFound, ticketID)
}

func (f *fakeBookings) UpdateStatus(_ context.Context, id uint64, from, to model.BookingStatus, reason string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return fmt.Errorf("%w: booking %d", model.ErrNotFound, id)
	}
	if b.Status != from {
		return fmt.Errorf("%w: booking %d is %s", model.ErrConflict, id, b.Status)
	}
	b.Status = to
	switch to {
	case model.BookingCancelled:
		b.CancelReason = reason
	case model.BookingCheckedIn:
		b.CheckedInAt = &at
	}
	f.bookings[id] = b
	return nil
}

func (f *fakeBookings) ListByBuyer(_ context.Context, buyerID uint64) ([]model.Booking, error) {
	return f.filter(func(b model.Booking) bool { return b.BuyerID == buyerID }), nil
}

func (f *fakeBookings) ListByEvent(_ context.Context, eventID uint64) ([]model.Booking, error) {
	return f.filter(func(b model.Booking) bool { return b.EventID == eventID }), nil
}

func (f *fakeBookings) HasActiveBooking(_ context.Context, eventID, userID uint64) (bool, error) {
	return len(f.filter(func(b model.Booking) bool {
		return b.EventID == eventID && b.BuyerID == userID && b.Status != model.BookingCancelled
	})) > 0, nil
}

func (f *fakeBookings) filter(keep func(model.Booking) bool) []model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeBookings) all() []model.Booking {
	return f.filter(func(model.Booking) bool { return true })
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[uint64]model.User
}

func newFakeUsers(users ...model.User) *fakeUsers {
	f := &fakeUsers{users: map[uint64]model.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", model.ErrNotFound, id)
	}
	return &u, nil
}

func (f *fakeUsers) SetKYC(_ context.Context, id uint64, from, to model.KYCStatus, doc string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return fmt.Errorf("%w: user %d", model.ErrNotFound, id)
	}
	if u.KYCStatus != from {
		return fmt.Errorf("%w: kyc is %s", model.ErrConflict, u.KYCStatus)
	}
	u.KYCStatus = to
	if doc != "" {
		u.KYCDocument = doc
	}
	f.users[id] = u
	return nil
}

func (f *fakeUsers) SetBlocked(_ context.Context, id uint64, blocked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return fmt.Errorf("%w: user %d", model.ErrNotFound, id)
	}
	u.Blocked = blocked
	f.users[id] = u
	return nil
}

func (f *fakeUsers) TopUp(_ context.Context, id uint64, amount decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: user %d", model.ErrNotFound, id)
	}
	u.WalletBalance = u.WalletBalance.Add(amount)
	f.users[id] = u
	return u.WalletBalance, nil
}

type fakeTokens struct {
	revoked []uint64
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	f.revoked = append(f.revoked, userID)
	return nil
}

type fakeReviews struct {
	mu      sync.Mutex
	reviews []model.Review
}

func (f *fakeReviews) Create(_ context.Context, r *model.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.reviews {
		if x.EventID == r.EventID && x.UserID == r.UserID {
			return fmt.Errorf("%w: review", model.ErrConflict)
		}
	}
	r.ID = uint64(len(f.reviews) + 1)
	f.reviews = append(f.reviews, *r)
	return nil
}

func (f *fakeReviews) ListByEvent(_ context.Context, eventID uint64) ([]model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Review
	for _, r := range f.reviews {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}
