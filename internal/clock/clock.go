// Package clock provides the wall-clock time source used for expiry math.
package clock

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrUnavailable is returned when the system clock reports a time before the unix epoch.
var ErrUnavailable = errors.New("system clock unavailable")

// Clock is the time source shared by the registry and the ban checker.
// It is satisfied by both the real clock and *clock.Mock from benbjohnson/clock.
type Clock = clock.Clock

// Mock is a manually advanced clock for tests.
type Mock = clock.Mock

// New returns the real system clock.
func New() Clock {
	return clock.New()
}

// NewMock returns a mock clock set to the given unix second.
func NewMock(unix int64) *Mock {
	m := clock.NewMock()
	m.Set(time.Unix(unix, 0))
	return m
}

// UnixNow returns the current time in seconds since epoch.
func UnixNow(c Clock) (int64, error) {
	now := c.Now()
	if now.Before(time.Unix(0, 0)) {
		return 0, ErrUnavailable
	}

	return now.Unix(), nil
}
