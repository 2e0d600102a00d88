package model

import "errors"

// Domain error kinds.  Callers wrap them with fmt.Errorf("%w: ...") to
// attach a human readable message and compare with errors.Is.  Handlers
// translate each kind into an HTTP status (see handler/errors.go).
var (
	// ErrValidation signals missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals an unknown event, booking, ticket, venue or user.
	ErrNotFound = errors.New("not found")
	// ErrForbidden signals that the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition signals a status change outside the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConflict signals a concurrent write lost a race or hit a uniqueness
	// constraint (seat label, ticket id, duplicate review).  Retryable.
	ErrConflict = errors.New("conflict")
	// ErrSoldOut signals that a seat class has no remaining allotment.
	ErrSoldOut = errors.New("sold out")
	// ErrAlreadyUsed is returned by gate verification for a ticket that was
	// already checked in.
	ErrAlreadyUsed = errors.New("ticket already used")
	// ErrCancelled is returned by gate verification for a cancelled ticket.
	ErrCancelled = errors.New("ticket cancelled")
)
