// Package reservation defines the court reservation record and its status.
package reservation

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/codr1/courtsched/internal/timeslot"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCheckedIn Status = "checked_in"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var allStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusCheckedIn,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

// ParseStatus converts a stored value back into a Status.
func ParseStatus(value string) (Status, error) {
	for _, s := range allStatuses {
		if string(s) == value {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown reservation status %q", value)
}

func (s Status) String() string { return string(s) }

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// BlocksCourt reports whether a reservation in status s occupies its window.
func (s Status) BlocksCourt() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCheckedIn:
		return true
	}
	return false
}

// Reservation is one booking of a court for a window on a calendar day.
// The day and window are in the court's local time zone.
type Reservation struct {
	ID       int64             `json:"id"`
	CourtID  int64             `json:"court_id"`
	UserID   string            `json:"user_id"`
	Date     civil.Date        `json:"date"`
	Interval timeslot.Interval `json:"interval"`
	Status   Status            `json:"status"`

	TotalAmount      int64   `json:"total_amount"`
	PaymentID        *string `json:"payment_id,omitempty"`
	RefundPercentage *int64  `json:"refund_percentage,omitempty"`
	RefundAmount     *int64  `json:"refund_amount,omitempty"`

	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy  string     `json:"cancelled_by,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether r still holds its court window.
func (r Reservation) Active() bool {
	return r.Status.BlocksCourt()
}

// StartsAt returns the absolute start instant in loc.
func (r Reservation) StartsAt(loc *time.Location) time.Time {
	return timeslot.At(r.Date, r.Interval.Start, loc)
}

// EndsAt returns the absolute end instant in loc.
func (r Reservation) EndsAt(loc *time.Location) time.Time {
	return timeslot.At(r.Date, r.Interval.End, loc)
}

// FilterActive returns the reservations that block their court.
func FilterActive(reservations []Reservation) []Reservation {
	active := make([]Reservation, 0, len(reservations))
	for _, r := range reservations {
		if r.Active() {
			active = append(active, r)
		}
	}
	return active
}
