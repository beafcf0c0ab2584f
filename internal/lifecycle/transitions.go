// Package lifecycle drives a reservation through its states. Every function
// is pure: it takes the current record and now, and returns the updated
// record plus the side effects the caller must carry out.
package lifecycle

import (
	"github.com/codr1/courtsched/internal/reservation"
)

// Event is something that happens to a reservation.
type Event string

const (
	EventPaymentCaptured Event = "payment_captured"
	EventSlotLost        Event = "slot_lost"
	EventCancel          Event = "cancel"
	EventCheckIn         Event = "check_in"
	EventCheckOut        Event = "check_out"
	EventNoShow          Event = "no_show"
)

var transitions = map[reservation.Status]map[Event]reservation.Status{
	reservation.StatusPending: {
		EventPaymentCaptured: reservation.StatusConfirmed,
		EventSlotLost:        reservation.StatusCancelled,
		EventCancel:          reservation.StatusCancelled,
	},
	reservation.StatusConfirmed: {
		EventCancel:  reservation.StatusCancelled,
		EventCheckIn: reservation.StatusCheckedIn,
		EventNoShow:  reservation.StatusNoShow,
	},
	reservation.StatusCheckedIn: {
		EventCheckOut: reservation.StatusCompleted,
	},
}

// Transition returns the status that event leads to from from, or a
// TransitionError when the table has no such edge. Terminal statuses have
// no edges.
func Transition(from reservation.Status, event Event) (reservation.Status, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return from, reservation.TransitionError{From: from, Event: string(event)}
}

// Allowed lists the events accepted in status s.
func Allowed(s reservation.Status) []Event {
	events := make([]Event, 0, len(transitions[s]))
	for ev := range transitions[s] {
		events = append(events, ev)
	}
	return events
}
