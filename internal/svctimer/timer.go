// Package svctimer decides when the next full or incremental crawl run
// is due from the configured interval strings.
package svctimer

import (
	"strconv"
	"strings"
	"time"
)

// fallbackDelay is applied when an interval string cannot be parsed:
// "not due for one hour".
const fallbackDelay = time.Hour

// Timer computes service due-ness from the configured full and
// incremental interval strings (`"15m"`, `"2h"`, `"1d"`; a bare number
// means days).
type Timer struct {
	fullInterval        string
	incrementalInterval string

	now func() time.Time
}

// New builds a Timer over the two configured interval strings.
func New(fullInterval, incrementalInterval string) *Timer {
	return &Timer{
		fullInterval:        fullInterval,
		incrementalInterval: incrementalInterval,
		now:                 time.Now,
	}
}

// NewWithClock injects the clock, for tests.
func NewWithClock(fullInterval, incrementalInterval string, now func() time.Time) *Timer {
	t := New(fullInterval, incrementalInterval)
	t.now = now
	return t
}

// ParseInterval parses `<int>{m|h|d}`; a missing unit means days. The
// boolean is false when the string is malformed.
func ParseInterval(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	unit := 24 * time.Hour
	digits := raw
	switch raw[len(raw)-1] {
	case 'm':
		unit = time.Minute
		digits = raw[:len(raw)-1]
	case 'h':
		unit = time.Hour
		digits = raw[:len(raw)-1]
	case 'd':
		digits = raw[:len(raw)-1]
	}

	amount, err := strconv.Atoi(digits)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return time.Duration(amount) * unit, true
}

// NextDue computes the next-due instant after lastService for the given
// interval string. A malformed interval yields lastService plus one
// hour.
func NextDue(lastService time.Time, interval string) time.Time {
	amount, ok := ParseInterval(interval)
	if !ok {
		amount = fallbackDelay
	}
	return lastService.Add(amount)
}

// IsTimeForFullService reports whether a full run is due: true on the
// first-ever run (zero timestamp) or once now passes the next-due
// instant.
func (t *Timer) IsTimeForFullService(lastFull time.Time) bool {
	if lastFull.IsZero() {
		return true
	}
	return t.now().After(NextDue(lastFull, t.fullInterval))
}

// IsTimeForIncrementalService reports whether an incremental run is due.
func (t *Timer) IsTimeForIncrementalService(lastIncremental time.Time) bool {
	if lastIncremental.IsZero() {
		return true
	}
	return t.now().After(NextDue(lastIncremental, t.incrementalInterval))
}
