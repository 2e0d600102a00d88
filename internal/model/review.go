package model

import "time"

// Review is a rating left by a user for an event after it took place.
// At most one review exists per (event, user).
type Review struct {
	ID        uint64    `json:"id"`
	EventID   uint64    `json:"event_id"`
	UserID    uint64    `json:"user_id"`
	Author    string    `json:"author,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	MinRating = 1
	MaxRating = 5
)
