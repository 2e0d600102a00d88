package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// ReviewRepo persists event reviews.  UNIQUE(event_id, user_id) keeps one
// review per user and event.
type ReviewRepo struct{ db *sql.DB }

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

// Create inserts the review and sets rv.ID.  A second review by the same
// user for the same event yields model.ErrConflict.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO reviews (event_id, user_id, rating, comment, created_at) VALUES (?,?,?,?,?)",
		rv.EventID, rv.UserID, rv.Rating, rv.Comment, rv.CreatedAt.UTC())
	if err != nil {
		return translate(err, "review")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = uint64(id)
	return nil
}

// ListByEvent returns the reviews of an event, newest first, with the
// author's display name.
func (r *ReviewRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.event_id, r.user_id, u.display_name, r.rating, r.comment, r.created_at
		   FROM reviews r JOIN users u ON u.id = r.user_id
		  WHERE r.event_id=? ORDER BY r.created_at DESC, r.id DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.EventID, &rv.UserID, &rv.Author, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
