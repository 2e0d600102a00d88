package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// EventFilter narrows List.  Zero values match everything.
type EventFilter struct {
	Status      model.EventStatus
	Category    string
	OrganizerID uint64
}

// EventRepo persists events together with their seat classes.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, organizer_id, title, category, starts_at, venue_id, venue_name, capacity, status, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Category, &e.StartsAt,
		&e.VenueID, &e.VenueName, &e.Capacity, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts the event and its seat classes in one transaction and
// sets e.ID.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (organizer_id, title, category, starts_at, venue_id, venue_name, capacity, status)
		 VALUES (?,?,?,?,?,?,?,?)`,
		e.OrganizerID, e.Title, e.Category, e.StartsAt.UTC(), e.VenueID, e.VenueName, e.Capacity, e.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if len(e.Classes) > 0 {
		var sb strings.Builder
		sb.WriteString("INSERT INTO event_seat_classes (event_id, name, allotted, price) VALUES ")
		args := make([]any, 0, len(e.Classes)*4)
		for i, c := range e.Classes {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("(?,?,?,?)")
			args = append(args, id, c.Name, c.Allotted, c.Price)
		}
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return translate(err, "seat class")
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// GetByID loads one event with its seat classes.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id=?", id))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("event %d", id))
	}
	classes, err := r.classes(ctx, []uint64{id})
	if err != nil {
		return nil, err
	}
	e.Classes = classes[id]
	return e, nil
}

// List returns events matching f ordered by start time.
func (r *EventRepo) List(ctx context.Context, f EventFilter) ([]model.Event, error) {
	q := "SELECT " + eventColumns + " FROM events"
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		where = append(where, "category=?")
		args = append(args, f.Category)
	}
	if f.OrganizerID != 0 {
		where = append(where, "organizer_id=?")
		args = append(args, f.OrganizerID)
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY starts_at, id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out []model.Event
		ids []uint64
	)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	classes, err := r.classes(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Classes = classes[out[i].ID]
	}
	return out, nil
}

// UpdateStatus moves an event from -> to.  It fails with model.ErrConflict
// when the stored status is no longer from.
func (r *EventRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.EventStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE events SET status=? WHERE id=? AND status=?", to, id, from)
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
	var cur model.EventStatus
	if err := r.db.QueryRowContext(ctx, "SELECT status FROM events WHERE id=?", id).Scan(&cur); err != nil {
		return translate(err, fmt.Sprintf("event %d", id))
	}
	return fmt.Errorf("%w: event %d is %s, not %s", model.ErrConflict, id, cur, from)
}

func (r *EventRepo) classes(ctx context.Context, ids []uint64) (map[uint64][]model.SeatClass, error) {
	ph := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT event_id, name, allotted, price, sold FROM event_seat_classes WHERE event_id IN ("+ph+") ORDER BY event_id, name",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64][]model.SeatClass, len(ids))
	for rows.Next() {
		var (
			eventID uint64
			c       model.SeatClass
		)
		if err := rows.Scan(&eventID, &c.Name, &c.Allotted, &c.Price, &c.Sold); err != nil {
			return nil, err
		}
		out[eventID] = append(out[eventID], c)
	}
	return out, rows.Err()
}
