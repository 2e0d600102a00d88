package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the account role carried in the JWT "role" claim.
type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleOrganizer, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

// KYCStatus tracks organizer identity verification.
type KYCStatus string

const (
	KYCNotSubmitted KYCStatus = "not_submitted"
	KYCPending      KYCStatus = "pending"
	KYCApproved     KYCStatus = "approved"
	KYCRejected     KYCStatus = "rejected"
)

var kycTransitions = map[KYCStatus][]KYCStatus{
	KYCNotSubmitted: {KYCPending},
	KYCRejected:     {KYCPending},
	KYCPending:      {KYCApproved, KYCRejected},
}

// CanTransition reports whether the KYC status may move to next.
func (s KYCStatus) CanTransition(next KYCStatus) bool {
	for _, n := range kycTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// User mirrors a row of the `users` table.
//
// Fields:
//
//	ID            – primary key.
//	Email         – unique, lower-cased login.
//	PasswordHash  – bcrypt hash, never serialized.
//	DisplayName   – name shown on tickets and reviews.
//	Role          – user, organizer or admin.
//	KYCStatus     – organizer verification state.
//	KYCDocument   – reference to the submitted document.
//	Blocked       – blocked accounts cannot log in.
//	WalletBalance – end-user wallet balance.
type User struct {
	ID            uint64          `json:"id"`
	Email         string          `json:"email"`
	PasswordHash  string          `json:"-"`
	DisplayName   string          `json:"display_name"`
	Role          Role            `json:"role"`
	KYCStatus     KYCStatus       `json:"kyc_status"`
	KYCDocument   string          `json:"kyc_document,omitempty"`
	Blocked       bool            `json:"blocked"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	ID   uint64
	Role Role
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether the actor is the organizer with the given id.
func (a Actor) Owns(organizerID uint64) bool {
	return a.Role == RoleOrganizer && a.ID == organizerID
}
