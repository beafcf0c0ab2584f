// Package conflict finds existing reservations that overlap a candidate
// window on the same court and day.
package conflict

import (
	"sort"

	"github.com/codr1/courtsched/internal/reservation"
	"github.com/codr1/courtsched/internal/timeslot"
)

// Detail describes one conflicting reservation for operator diagnostics.
type Detail struct {
	ReservationID  int64              `json:"reservation_id"`
	Status         reservation.Status `json:"status"`
	Window         timeslot.Interval  `json:"window"`
	Overlap        timeslot.Interval  `json:"overlap"`
	OverlapMinutes int                `json:"overlap_minutes"`
}

// FindConflicts returns the blocking reservations whose window overlaps
// candidate, ordered by start. Cancelled, completed and no-show reservations
// never block. excludeID skips the candidate's own record when it is already
// stored; pass 0 for a new booking.
func FindConflicts(candidate timeslot.Interval, existing []reservation.Reservation, excludeID int64) []reservation.Reservation {
	var conflicts []reservation.Reservation
	for _, r := range existing {
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		if !r.Active() {
			continue
		}
		if timeslot.Overlaps(candidate, r.Interval) {
			conflicts = append(conflicts, r)
		}
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Interval.Start < conflicts[j].Interval.Start
	})
	return conflicts
}

// HasConflict is FindConflicts reduced to a boolean.
func HasConflict(candidate timeslot.Interval, existing []reservation.Reservation, excludeID int64) bool {
	return len(FindConflicts(candidate, existing, excludeID)) > 0
}

// Detect reports each conflict with the overlapping window and its length.
// It never mutates the reservations it is given.
func Detect(candidate timeslot.Interval, existing []reservation.Reservation, excludeID int64) []Detail {
	conflicts := FindConflicts(candidate, existing, excludeID)
	details := make([]Detail, 0, len(conflicts))
	for _, r := range conflicts {
		overlap, _ := timeslot.Intersection(candidate, r.Interval)
		details = append(details, Detail{
			ReservationID:  r.ID,
			Status:         r.Status,
			Window:         r.Interval,
			Overlap:        overlap,
			OverlapMinutes: overlap.Minutes(),
		})
	}
	return details
}

// Windows extracts the intervals of conflicts, for error reporting that must
// not reveal who holds them.
func Windows(conflicts []reservation.Reservation) []timeslot.Interval {
	windows := make([]timeslot.Interval, len(conflicts))
	for i, r := range conflicts {
		windows[i] = r.Interval
	}
	return windows
}
