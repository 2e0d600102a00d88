// Package clock is the time source services and handlers are built on.
// Tests substitute their own Clock to pin or advance time.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type wall struct{}

// NewSystem returns the wall clock, in UTC so stored timestamps and token
// claims never carry a local zone.
func NewSystem() Clock { return wall{} }

func (wall) Now() time.Time { return time.Now().UTC() }
