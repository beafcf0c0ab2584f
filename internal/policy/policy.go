// Package policy holds per-court booking rules: operating hours, duration
// bounds, the advance-booking window, rates and cancellation refund tiers.
package policy

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/codr1/courtsched/internal/timeslot"
)

const (
	DefaultGranularityMinutes  = 30
	DefaultCheckInGraceMinutes = 15
)

var ErrPolicyViolation = errors.New("policy violation")

// Violation codes carried by PolicyError.
const (
	ViolationDuration      = "duration_out_of_bounds"
	ViolationGranularity   = "not_aligned_to_granularity"
	ViolationClosedDay     = "closed_day"
	ViolationOutsideHours  = "outside_operating_hours"
	ViolationTooFarAhead   = "too_far_in_advance"
	ViolationPastStart     = "start_in_past"
	ViolationInvalidPolicy = "invalid_policy"
)

// PolicyError reports which rule a booking request broke.
type PolicyError struct {
	Code   string
	Detail string
}

func (e PolicyError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("policy violation: %s", e.Code)
	}
	return fmt.Sprintf("policy violation: %s: %s", e.Code, e.Detail)
}

func (e PolicyError) Is(target error) bool {
	return target == ErrPolicyViolation
}

// DayHours is one weekday's opening window.
type DayHours struct {
	Open   bool               `json:"open"`
	Opens  timeslot.TimeOfDay `json:"opens"`
	Closes timeslot.TimeOfDay `json:"closes"`
}

// RefundTier grants RefundPercentage when a cancellation happens more than
// MinHoursBefore hours ahead of the reservation start.
type RefundTier struct {
	MinHoursBefore   int64 `json:"min_hours_before"`
	RefundPercentage int64 `json:"refund_percentage"`
}

type CancellationPolicy struct {
	Description string       `json:"description"`
	Tiers       []RefundTier `json:"tiers"`
}

// Policy is the booking configuration of a single court.
type Policy struct {
	Timezone string         `json:"timezone"`
	Location *time.Location `json:"-"`

	// OperatingHours is indexed by time.Weekday.
	OperatingHours [7]DayHours `json:"operating_hours"`

	GranularityMinutes    int `json:"granularity_minutes"`
	MinBookingMinutes     int `json:"min_booking_minutes"`
	MaxBookingMinutes     int `json:"max_booking_minutes"`
	MaxAdvanceBookingDays int `json:"max_advance_booking_days"`

	// CheckInGraceMinutes is how early check-in opens. Nil means the
	// default; zero means no early check-in.
	CheckInGraceMinutes *int `json:"check_in_grace_minutes,omitempty"`

	// Rates are per hour in minor currency units.
	HourlyRate   int64               `json:"hourly_rate"`
	PeakHourRate *int64              `json:"peak_hour_rate,omitempty"`
	PeakHours    []timeslot.Interval `json:"peak_hours,omitempty"`
	WeekendRate  *int64              `json:"weekend_rate,omitempty"`

	Cancellation CancellationPolicy `json:"cancellation"`
}

// Loc returns the court time zone, loading it from Timezone when needed.
func (p *Policy) Loc() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	if p.Timezone != "" {
		if loc, err := time.LoadLocation(p.Timezone); err == nil {
			p.Location = loc
			return loc
		}
	}
	return time.UTC
}

// Granularity returns the configured base step, defaulting to 30 minutes.
func (p Policy) Granularity() int {
	if p.GranularityMinutes > 0 {
		return p.GranularityMinutes
	}
	return DefaultGranularityMinutes
}

func (p Policy) CheckInGrace() time.Duration {
	if p.CheckInGraceMinutes != nil {
		return time.Duration(*p.CheckInGraceMinutes) * time.Minute
	}
	return DefaultCheckInGraceMinutes * time.Minute
}

// Validate checks the invariants every stored policy must hold.
func (p Policy) Validate() error {
	invalid := func(format string, args ...any) error {
		return PolicyError{Code: ViolationInvalidPolicy, Detail: fmt.Sprintf(format, args...)}
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return invalid("unknown timezone %q", p.Timezone)
		}
	}
	g := p.Granularity()
	switch {
	case p.MinBookingMinutes <= 0 || p.MaxBookingMinutes <= 0:
		return invalid("booking bounds must be positive")
	case p.MinBookingMinutes > p.MaxBookingMinutes:
		return invalid("min booking %d exceeds max %d", p.MinBookingMinutes, p.MaxBookingMinutes)
	case p.MinBookingMinutes%g != 0 || p.MaxBookingMinutes%g != 0:
		return invalid("booking bounds must be multiples of %d minutes", g)
	case p.MaxAdvanceBookingDays <= 0:
		return invalid("max advance booking days must be positive")
	case p.CheckInGraceMinutes != nil && *p.CheckInGraceMinutes < 0:
		return invalid("check-in grace must not be negative")
	case p.HourlyRate < 0:
		return invalid("hourly rate must not be negative")
	}
	for day, hours := range p.OperatingHours {
		if !hours.Open {
			continue
		}
		if _, err := timeslot.New(hours.Opens, hours.Closes); err != nil {
			return invalid("%s hours: %v", time.Weekday(day), err)
		}
	}
	for _, peak := range p.PeakHours {
		if err := peak.Validate(); err != nil {
			return invalid("peak hours: %v", err)
		}
	}
	for _, tier := range p.Cancellation.Tiers {
		if tier.MinHoursBefore < 0 {
			return invalid("refund tier hours must not be negative")
		}
		if tier.RefundPercentage < 0 || tier.RefundPercentage > 100 {
			return invalid("refund percentage %d out of range", tier.RefundPercentage)
		}
	}
	return nil
}

// Window returns the operating window for date, or false when the court is
// closed that weekday.
func (p Policy) Window(date civil.Date) (timeslot.Interval, bool) {
	hours := p.OperatingHours[timeslot.Weekday(date)]
	if !hours.Open {
		return timeslot.Interval{}, false
	}
	window, err := timeslot.New(hours.Opens, hours.Closes)
	if err != nil {
		return timeslot.Interval{}, false
	}
	return window, true
}

// LastBookableDate is the furthest date a booking made on today may target.
func (p Policy) LastBookableDate(today civil.Date) civil.Date {
	return today.AddDays(max(p.MaxAdvanceBookingDays, 0))
}

func (p Policy) TooFarInAdvance(date, today civil.Date) bool {
	return date.After(p.LastBookableDate(today))
}

// CheckDuration validates the interval length and its alignment to the
// court granularity.
func (p Policy) CheckDuration(iv timeslot.Interval) error {
	minutes := iv.Minutes()
	if minutes < p.MinBookingMinutes || minutes > p.MaxBookingMinutes {
		return PolicyError{
			Code:   ViolationDuration,
			Detail: fmt.Sprintf("%d minutes not within [%d, %d]", minutes, p.MinBookingMinutes, p.MaxBookingMinutes),
		}
	}
	g := p.Granularity()
	if int(iv.Start)%g != 0 || int(iv.End)%g != 0 {
		return PolicyError{Code: ViolationGranularity, Detail: fmt.Sprintf("%s must align to %d minutes", iv, g)}
	}
	return nil
}

// CheckBooking validates a requested booking against every policy rule.
// now is used for the past-start and advance-window checks.
func (p Policy) CheckBooking(date civil.Date, iv timeslot.Interval, now time.Time) error {
	if err := iv.Validate(); err != nil {
		return err
	}
	if err := p.CheckDuration(iv); err != nil {
		return err
	}
	window, open := p.Window(date)
	if !open {
		return PolicyError{Code: ViolationClosedDay, Detail: fmt.Sprintf("closed on %s", timeslot.Weekday(date))}
	}
	if !timeslot.IsWithin(iv, window) {
		return PolicyError{Code: ViolationOutsideHours, Detail: fmt.Sprintf("%s outside %s", iv, window)}
	}
	loc := p.Loc()
	if p.TooFarInAdvance(date, timeslot.Today(now, loc)) {
		return PolicyError{Code: ViolationTooFarAhead, Detail: fmt.Sprintf("%s is beyond the booking window", date)}
	}
	if !timeslot.At(date, iv.Start, loc).After(now) {
		return PolicyError{Code: ViolationPastStart, Detail: fmt.Sprintf("%s %s has already started", date, iv.Start)}
	}
	return nil
}

// sortedTiers returns tiers ordered from the highest threshold down.
func (p Policy) sortedTiers() []RefundTier {
	tiers := append([]RefundTier(nil), p.Cancellation.Tiers...)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinHoursBefore > tiers[j].MinHoursBefore
	})
	return tiers
}

// RefundPercentage returns the refund owed when cancelling with until left
// before the start. Courts without tiers refund in full.
func (p Policy) RefundPercentage(until time.Duration) int64 {
	if len(p.Cancellation.Tiers) == 0 {
		return 100
	}
	for _, tier := range p.sortedTiers() {
		if until > time.Duration(tier.MinHoursBefore)*time.Hour {
			return tier.RefundPercentage
		}
	}
	return 0
}

// RefundAmount applies percentage to total, rounding down.
func RefundAmount(total, percentage int64) int64 {
	if total <= 0 || percentage <= 0 {
		return 0
	}
	if percentage >= 100 {
		return total
	}
	return total * percentage / 100
}
