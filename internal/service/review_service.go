package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const maxCommentRunes = 2000

type ReviewService struct {
	reviews  ReviewStore
	events   EventStore
	bookings BookingStore
	opt      Options
}

func NewReviewService(reviews ReviewStore, events EventStore, bookings BookingStore, opt Options) *ReviewService {
	return &ReviewService{reviews: reviews, events: events, bookings: bookings, opt: opt.withDefaults()}
}

type CreateReviewInput struct {
	EventID uint64
	UserID  uint64
	Rating  int
	Comment string
}

// Create stores a review.  Only attendees holding a ticket may review, only
// after the event date, and only once per event.
func (s *ReviewService) Create(ctx context.Context, in CreateReviewInput) (*model.Review, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	in.Comment = strings.TrimSpace(in.Comment)
	if in.Rating < model.MinRating || in.Rating > model.MaxRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", model.ErrValidation, model.MinRating, model.MaxRating)
	}
	if utf8.RuneCountInString(in.Comment) > maxCommentRunes {
		return nil, fmt.Errorf("%w: comment longer than %d characters", model.ErrValidation, maxCommentRunes)
	}

	e, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	now := s.opt.Clock.Now()
	if e.Status != model.EventApproved {
		return nil, fmt.Errorf("%w: event %d is %s", model.ErrValidation, e.ID, e.Status)
	}
	if now.Before(e.StartsAt) {
		return nil, fmt.Errorf("%w: event %d has not taken place yet", model.ErrValidation, e.ID)
	}
	ok, err := s.bookings.HasActiveBooking(ctx, e.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: only attendees can review event %d", model.ErrForbidden, e.ID)
	}

	r := &model.Review{
		EventID:   e.ID,
		UserID:    in.UserID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: now,
	}
	if err := s.reviews.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ReviewSummary lists reviews with their average rating.
type ReviewSummary struct {
	Reviews []model.Review  `json:"reviews"`
	Count   int             `json:"count"`
	Average decimal.Decimal `json:"average"`
}

// ListByEvent returns the reviews of an event, newest first.
func (s *ReviewService) ListByEvent(ctx context.Context, eventID uint64) (*ReviewSummary, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	list, err := s.reviews.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	sum := 0
	for _, r := range list {
		sum += r.Rating
	}
	out := &ReviewSummary{Reviews: list, Count: len(list), Average: decimal.Zero}
	if out.Reviews == nil {
		out.Reviews = []model.Review{}
	}
	if len(list) > 0 {
		out.Average = decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(list)))).Round(2)
	}
	return out, nil
}
