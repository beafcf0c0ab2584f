// Package timeslot provides half-open time-of-day intervals and the calendar
// helpers the scheduling packages share.
package timeslot

import (
	"errors"
	"fmt"
	"time"
)

// MinutesPerDay is the exclusive upper bound for a TimeOfDay start and the
// inclusive upper bound for an end.
const MinutesPerDay = 24 * 60

var ErrInvalidInterval = errors.New("invalid interval")

// TimeOfDay is a wall-clock time expressed as minutes since local midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM". "24:00" is accepted so a day can close at
// midnight.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	if value == "24:00" {
		return MinutesPerDay, nil
	}
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", value, err)
	}
	return TimeOfDay(parsed.Hour()*60 + parsed.Minute()), nil
}

// MustParse is ParseTimeOfDay for literals.
func MustParse(value string) TimeOfDay {
	tod, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return tod
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= MinutesPerDay
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Interval is the half-open window [Start, End) within one day.
type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// New builds an interval, rejecting start >= end and out-of-day bounds.
func New(start, end TimeOfDay) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Parse builds an interval from two "HH:MM" values.
func Parse(start, end string) (Interval, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: start: %v", ErrInvalidInterval, err)
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: end: %v", ErrInvalidInterval, err)
	}
	return New(s, e)
}

func (iv Interval) Validate() error {
	if !iv.Start.Valid() || !iv.End.Valid() || iv.Start == MinutesPerDay {
		return fmt.Errorf("%w: %s-%s out of range", ErrInvalidInterval, iv.Start, iv.End)
	}
	if iv.Start >= iv.End {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidInterval, iv.Start, iv.End)
	}
	return nil
}

func (iv Interval) String() string {
	return iv.Start.String() + "-" + iv.End.String()
}

// Minutes is the interval length.
func (iv Interval) Minutes() int {
	return int(iv.End - iv.Start)
}

func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.Minutes()) * time.Minute
}

// Overlaps reports whether a and b share any minute. Back-to-back intervals
// do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// IsWithin reports whether iv lies entirely inside window.
func IsWithin(iv, window Interval) bool {
	return window.Start <= iv.Start && iv.End <= window.End
}

// Intersection returns the shared part of a and b; ok is false when they do
// not overlap.
func Intersection(a, b Interval) (Interval, bool) {
	if !Overlaps(a, b) {
		return Interval{}, false
	}
	return Interval{Start: max(a.Start, b.Start), End: min(a.End, b.End)}, true
}
