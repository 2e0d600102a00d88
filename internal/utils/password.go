package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// HashPassword returns the bcrypt hash of plain.  A cost outside bcrypt's
// range falls back to bcrypt.DefaultCost.  Passwords longer than 72 bytes
// are rejected rather than silently truncated.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if len(plain) > 72 {
		return "", fmt.Errorf("%w: password longer than 72 bytes", model.ErrValidation)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the bcrypt hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
