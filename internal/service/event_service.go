package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/notify"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type EventService struct {
	events EventStore
	users  UserStore
	opt    Options
}

func NewEventService(events EventStore, users UserStore, opt Options) *EventService {
	return &EventService{events: events, users: users, opt: opt.withDefaults()}
}

// CreateEventInput is what an organizer submits.  SeatMap splits the venue
// into classes; when empty the whole venue is one General class.  Prices
// are per class and default to zero.
type CreateEventInput struct {
	OrganizerID uint64
	Title       string
	Category    string
	StartsAt    time.Time
	VenueID     string
	SeatMap     map[string]int
	Prices      map[string]decimal.Decimal
}

// Create validates the input, derives the seat map from the venue capacity
// and stores the event as pending.
func (s *EventService) Create(ctx context.Context, in CreateEventInput) (*model.Event, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.VenueID = strings.TrimSpace(in.VenueID)
	switch {
	case in.Title == "":
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	case in.Category == "":
		return nil, fmt.Errorf("%w: category is required", model.ErrValidation)
	case in.StartsAt.IsZero():
		return nil, fmt.Errorf("%w: date is required", model.ErrValidation)
	case in.VenueID == "":
		return nil, fmt.Errorf("%w: venue is required", model.ErrValidation)
	case !in.StartsAt.After(s.opt.Clock.Now()):
		return nil, fmt.Errorf("%w: date must be in the future", model.ErrValidation)
	}
	if err := checkLen("title", in.Title, maxTitleLen); err != nil {
		return nil, err
	}
	if err := checkLen("category", in.Category, maxCategoryLen); err != nil {
		return nil, err
	}
	venue, err := model.LookupVenue(in.VenueID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown venue %q", model.ErrValidation, in.VenueID)
	}

	org, err := s.users.GetByID(ctx, in.OrganizerID)
	if err != nil {
		return nil, err
	}
	switch {
	case org.Role != model.RoleOrganizer || org.Blocked:
		return nil, fmt.Errorf("%w: only active organizers can create events", model.ErrForbidden)
	case org.KYCStatus != model.KYCApproved:
		return nil, fmt.Errorf("%w: organizer KYC is %s", model.ErrForbidden, org.KYCStatus)
	}

	classes, err := seatClasses(venue, in.SeatMap, in.Prices)
	if err != nil {
		return nil, err
	}

	e := &model.Event{
		OrganizerID: in.OrganizerID,
		Title:       in.Title,
		Category:    in.Category,
		StartsAt:    in.StartsAt.UTC(),
		VenueID:     venue.ID,
		VenueName:   venue.Name,
		Capacity:    venue.Capacity,
		Status:      model.EventPending,
		Classes:     classes,
	}
	if err := s.events.Create(ctx, e); err != nil {
		return nil, err
	}
	now := s.opt.Clock.Now()
	e.CreatedAt, e.UpdatedAt = now, now

	n := notify.New(notify.KindEventCreated, e.OrganizerID,
		fmt.Sprintf("Event %q created and awaiting approval", e.Title), now)
	n.EventID = e.ID
	s.opt.Notifier.Dispatch(n)
	return e, nil
}

// seatClasses turns the requested split into classes, sorted by name.  The
// sum of allotments never exceeds the venue capacity.
func seatClasses(v model.Venue, seatMap map[string]int, prices map[string]decimal.Decimal) ([]model.SeatClass, error) {
	if len(seatMap) == 0 {
		seatMap = map[string]int{model.DefaultSeatClass: v.Capacity}
	}
	total := 0
	seen := make(map[string]struct{}, len(seatMap))
	classes := make([]model.SeatClass, 0, len(seatMap))
	for name, n := range seatMap {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: seat class name is required", model.ErrValidation)
		}
		if err := checkLen("seat class name", name, maxClassNameLen); err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("%w: seat class %q needs a positive allotment", model.ErrValidation, name)
		}
		// Compared by difference so huge allotments cannot wrap the sum.
		if n > v.Capacity-total {
			return nil, fmt.Errorf("%w: seat map allots more than the %d seats %s holds", model.ErrValidation, v.Capacity, v.Name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: seat class %q given twice", model.ErrValidation, name)
		}
		seen[name] = struct{}{}
		total += n
		classes = append(classes, model.SeatClass{Name: name, Allotted: n, Price: decimal.Zero})
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })

	for name, p := range prices {
		i := sort.Search(len(classes), func(i int) bool { return classes[i].Name >= name })
		if i == len(classes) || classes[i].Name != name {
			return nil, fmt.Errorf("%w: price given for unknown seat class %q", model.ErrValidation, name)
		}
		if p.IsNegative() {
			return nil, fmt.Errorf("%w: price for %q is negative", model.ErrValidation, name)
		}
		classes[i].Price = p.Round(2)
	}
	return classes, nil
}

// SetStatus applies one transition of the event table on behalf of actor.
func (s *EventService) SetStatus(ctx context.Context, eventID uint64, to model.EventStatus, actor model.Actor) (*model.Event, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := model.CheckEventTransition(e.Status, to, actor, e.OrganizerID); err != nil {
		return nil, err
	}
	if err := s.events.UpdateStatus(ctx, e.ID, e.Status, to); err != nil {
		return nil, err
	}
	e.Status = to
	e.UpdatedAt = s.opt.Clock.Now()

	s.opt.Logger.Info("event status changed", "event_id", e.ID, "status", to, "actor_id", actor.ID, "actor_role", actor.Role)
	n := notify.New(notify.KindGeneric, e.OrganizerID, fmt.Sprintf("Event %q is now %s", e.Title, to), e.UpdatedAt)
	n.EventID = e.ID
	n.Data = map[string]any{"status": string(to)}
	s.opt.Notifier.Dispatch(n)
	return e, nil
}

// Get returns an event.  Events that are not approved are visible only to
// their organizer and to admins; to everyone else they do not exist.
func (s *EventService) Get(ctx context.Context, id uint64, viewer model.Actor) (*model.Event, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EventApproved && !viewer.IsAdmin() && !viewer.Owns(e.OrganizerID) {
		return nil, fmt.Errorf("%w: event %d", model.ErrNotFound, id)
	}
	return e, nil
}

// List returns events matching the filter.
func (s *EventService) List(ctx context.Context, f repository.EventFilter) ([]model.Event, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()
	return s.events.List(ctx, f)
}
