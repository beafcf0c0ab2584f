// Package availability computes the bookable windows of a court on a day.
package availability

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/codr1/courtsched/internal/conflict"
	"github.com/codr1/courtsched/internal/policy"
	"github.com/codr1/courtsched/internal/reservation"
	"github.com/codr1/courtsched/internal/timeslot"
)

// Reason explains why a day produced no slots.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonClosedDay       Reason = "closed_day"
	ReasonTooFarInAdvance Reason = "too_far_in_advance"
	ReasonPastDate        Reason = "past_date"
	ReasonFullyBooked     Reason = "fully_booked"
)

// Slot is a candidate booking window. Slots are derived and never stored.
type Slot struct {
	Date     civil.Date        `json:"date"`
	Interval timeslot.Interval `json:"interval"`
}

// Result is the outcome of a free-slot computation for one day.
type Result struct {
	Date   civil.Date          `json:"date"`
	Window *timeslot.Interval  `json:"window,omitempty"`
	Gaps   []timeslot.Interval `json:"gaps,omitempty"`
	Slots  []Slot              `json:"slots"`
	Reason Reason              `json:"reason,omitempty"`
}

// ComputeFreeSlots lists every window on date that a new booking could take:
// inside the operating hours, clear of active reservations, with a length in
// [MinBookingMinutes, MaxBookingMinutes] in granularity steps. Start times
// advance by stepMinutes inside each free gap; a non-positive step uses the
// court granularity. Windows that have already started at now are omitted.
func ComputeFreeSlots(p policy.Policy, date civil.Date, existing []reservation.Reservation, stepMinutes int, now time.Time) Result {
	result := Result{Date: date, Slots: []Slot{}}

	loc := p.Loc()
	today := timeslot.Today(now, loc)
	if date.Before(today) {
		result.Reason = ReasonPastDate
		return result
	}
	if p.TooFarInAdvance(date, today) {
		result.Reason = ReasonTooFarInAdvance
		return result
	}
	window, open := p.Window(date)
	if !open {
		result.Reason = ReasonClosedDay
		return result
	}
	result.Window = &window

	if stepMinutes <= 0 {
		stepMinutes = p.Granularity()
	}
	lengthStep := p.Granularity()

	result.Gaps = FreeGaps(window, existing)
	for _, gap := range result.Gaps {
		for start := gap.Start; int(start)+p.MinBookingMinutes <= int(gap.End); start += timeslot.TimeOfDay(stepMinutes) {
			if !timeslot.At(date, start, loc).After(now) {
				continue
			}
			for length := p.MinBookingMinutes; length <= p.MaxBookingMinutes; length += lengthStep {
				end := start + timeslot.TimeOfDay(length)
				if end > gap.End {
					break
				}
				result.Slots = append(result.Slots, Slot{Date: date, Interval: timeslot.Interval{Start: start, End: end}})
			}
		}
	}
	if len(result.Slots) == 0 {
		result.Reason = ReasonFullyBooked
	}
	return result
}

// FreeGaps subtracts the active reservations from window and returns the
// remaining free intervals in order.
func FreeGaps(window timeslot.Interval, existing []reservation.Reservation) []timeslot.Interval {
	busy := make([]timeslot.Interval, 0, len(existing))
	for _, r := range existing {
		if !r.Active() {
			continue
		}
		if clipped, ok := timeslot.Intersection(r.Interval, window); ok {
			busy = append(busy, clipped)
		}
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start < busy[j].Start })

	var gaps []timeslot.Interval
	cursor := window.Start
	for _, b := range busy {
		if b.Start > cursor {
			gaps = append(gaps, timeslot.Interval{Start: cursor, End: b.Start})
		}
		if b.End > cursor {
			cursor = b.End
		}
	}
	if cursor < window.End {
		gaps = append(gaps, timeslot.Interval{Start: cursor, End: window.End})
	}
	return gaps
}

// IsFree reports whether no active reservation overlaps candidate.
func IsFree(candidate timeslot.Interval, existing []reservation.Reservation) bool {
	return !conflict.HasConflict(candidate, existing, 0)
}
