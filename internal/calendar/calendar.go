// Package calendar holds the fixed-width date and time-of-day values used by
// schedules and appointments. Both are zero-padded strings, so ordinary
// string comparison orders them chronologically.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")
	ErrInvalidTime = errors.New("time must be HH:MM")
)

// Date is a calendar date in YYYY-MM-DD form.
type Date string

// TimeOfDay is a wall-clock time in HH:MM form, no timezone attached.
type TimeOfDay string

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil || t.Format(DateLayout) != s {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date(s), nil
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil || t.Format(TimeLayout) != s {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return TimeOfDay(s), nil
}

func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

func (d Date) String() string { return string(d) }

func (d Date) Before(other Date) bool { return d < other }

// AddDays shifts a valid date by n days. An invalid date is returned unchanged.
func (d Date) AddDays(n int) Date {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return d
	}
	return DateOf(t.AddDate(0, 0, n))
}

func (t TimeOfDay) String() string { return string(t) }

func (t TimeOfDay) Before(other TimeOfDay) bool { return t < other }

// Clock supplies "today" for past-date checks.
type Clock interface {
	Today() Date
}

// SystemClock reads the wall clock in the clinic's timezone.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Today() Date {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(time.Now().In(loc))
}

// FixedClock always reports the same day.
type FixedClock Date

func (c FixedClock) Today() Date { return Date(c) }
