// Package calendar resolves "today" and validates calendar-date strings.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the storage and wire format of calendar dates.
const Layout = "2006-01-02"

// Calendar reports the current time in a fixed location.
type Calendar struct {
	now func() time.Time
	loc *time.Location
}

// New returns a Calendar on the wall clock in loc. A nil loc means UTC.
func New(loc *time.Location) Calendar {
	return WithClock(time.Now, loc)
}

// WithClock returns a Calendar driven by now.
func WithClock(now func() time.Time, loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{now: now, loc: loc}
}

// Now returns the current instant.
func (c Calendar) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Today returns the current calendar date in the calendar's location.
func (c Calendar) Today() string {
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	return c.Now().In(loc).Format(Layout)
}

// ParseDate validates raw as a YYYY-MM-DD calendar date and returns it in
// canonical form.
func ParseDate(raw string) (string, error) {
	t, err := time.Parse(Layout, raw)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return t.Format(Layout), nil
}
