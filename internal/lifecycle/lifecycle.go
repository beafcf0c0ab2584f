package lifecycle

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/codr1/courtsched/internal/conflict"
	"github.com/codr1/courtsched/internal/policy"
	"github.com/codr1/courtsched/internal/reservation"
	"github.com/codr1/courtsched/internal/timeslot"
)

// CancelReasonSlotLost is recorded on a pending reservation that lost the
// confirmation race to another booking of the same window.
const CancelReasonSlotLost = "slot_no_longer_available"

// Draft is a booking request that has not been stored yet.
type Draft struct {
	CourtID  int64
	UserID   string
	Date     civil.Date
	Interval timeslot.Interval
}

// PaymentResult is what the payment collaborator reports for a capture.
type PaymentResult struct {
	Success   bool
	Amount    int64
	PaymentID string
}

// Create validates d against the court policy and the active reservations
// of that court and day, and returns a new pending reservation.
func Create(p policy.Policy, d Draft, existing []reservation.Reservation, now time.Time) (Outcome, error) {
	if err := d.Interval.Validate(); err != nil {
		return Outcome{}, err
	}
	if err := p.CheckBooking(d.Date, d.Interval, now); err != nil {
		return Outcome{}, err
	}
	if conflicts := conflict.FindConflicts(d.Interval, existing, 0); len(conflicts) > 0 {
		return Outcome{}, reservation.SlotUnavailableError{Windows: conflict.Windows(conflicts)}
	}

	r := reservation.Reservation{
		CourtID:     d.CourtID,
		UserID:      d.UserID,
		Date:        d.Date,
		Interval:    d.Interval,
		Status:      reservation.StatusPending,
		TotalAmount: p.Quote(d.Date, d.Interval),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return Outcome{
		Reservation: r,
		Intents:     []Intent{notify(NoticeCreated), analytics(AnalyticsCreated)},
	}, nil
}

// ConfirmPayment moves a pending reservation to confirmed once payment is
// captured, re-checking that no other active reservation took the window in
// the meantime.
//
// When the window was lost the returned Outcome is still meaningful: the
// reservation is cancelled and a refund of the captured amount is requested.
// The caller must store that outcome and then surface the error.
func ConfirmPayment(r reservation.Reservation, result PaymentResult, existing []reservation.Reservation, now time.Time) (Outcome, error) {
	if _, err := Transition(r.Status, EventPaymentCaptured); err != nil {
		return Outcome{Reservation: r}, err
	}
	if !result.Success {
		return Outcome{Reservation: r}, reservation.ErrPaymentFailed
	}
	if result.Amount < r.TotalAmount {
		return Outcome{Reservation: r}, fmt.Errorf("%w: paid %d of %d", reservation.ErrPaymentAmountMismatch, result.Amount, r.TotalAmount)
	}

	paymentID := result.PaymentID
	r.PaymentID = &paymentID
	r.UpdatedAt = now

	if conflicts := conflict.FindConflicts(r.Interval, confirmedOnly(existing), r.ID); len(conflicts) > 0 {
		r.Status, _ = Transition(r.Status, EventSlotLost)
		r.CancelledAt = &now
		r.CancelReason = CancelReasonSlotLost
		full := int64(100)
		r.RefundPercentage = &full
		r.RefundAmount = &result.Amount
		out := Outcome{
			Reservation: r,
			Intents: []Intent{
				{Kind: IntentRefund, PaymentID: paymentID, Amount: result.Amount, Percentage: full},
				notify(NoticeCancelled),
				analytics(AnalyticsRaceLost),
			},
		}
		return out, reservation.SlotUnavailableError{Windows: conflict.Windows(conflicts), Lost: true}
	}

	r.Status, _ = Transition(r.Status, EventPaymentCaptured)
	return Outcome{
		Reservation: r,
		Intents:     []Intent{notify(NoticeConfirmed), analytics(AnalyticsConfirmed)},
	}, nil
}

// confirmedOnly keeps the reservations that already won their window.
// Overlapping pending reservations race; the first to confirm wins.
func confirmedOnly(existing []reservation.Reservation) []reservation.Reservation {
	var out []reservation.Reservation
	for _, r := range existing {
		if r.Status == reservation.StatusConfirmed || r.Status == reservation.StatusCheckedIn {
			out = append(out, r)
		}
	}
	return out
}

// Cancel cancels a pending or confirmed reservation that has not started
// yet and computes the refund tier from the time left before the start.
func Cancel(r reservation.Reservation, p policy.Policy, actorID, reason string, now time.Time) (Outcome, error) {
	to, err := Transition(r.Status, EventCancel)
	if err != nil {
		return Outcome{Reservation: r}, err
	}
	start := r.StartsAt(p.Loc())
	if !now.Before(start) {
		return Outcome{Reservation: r}, reservation.ErrCannotCancelPastReservation
	}

	percentage := p.RefundPercentage(start.Sub(now))
	var amount int64
	if r.PaymentID != nil {
		amount = policy.RefundAmount(r.TotalAmount, percentage)
	}

	r.Status = to
	r.CancelledAt = &now
	r.CancelledBy = actorID
	r.CancelReason = reason
	r.RefundPercentage = &percentage
	r.RefundAmount = &amount
	r.UpdatedAt = now

	intents := make([]Intent, 0, 3)
	if amount > 0 {
		intents = append(intents, Intent{Kind: IntentRefund, PaymentID: *r.PaymentID, Amount: amount, Percentage: percentage})
	}
	intents = append(intents, notify(NoticeCancelled), analytics(AnalyticsCancelled))
	return Outcome{Reservation: r, Intents: intents}, nil
}

// CheckInWindow returns the instants between which check-in is accepted:
// from the start minus the court grace period up to the end.
func CheckInWindow(r reservation.Reservation, p policy.Policy) (opens, closes time.Time) {
	loc := p.Loc()
	return r.StartsAt(loc).Add(-p.CheckInGrace()), r.EndsAt(loc)
}

// CheckIn marks a confirmed reservation as checked in when now falls in
// [start - grace, end).
func CheckIn(r reservation.Reservation, p policy.Policy, now time.Time) (Outcome, error) {
	if r.Status == reservation.StatusNoShow {
		return Outcome{Reservation: r}, fmt.Errorf("%w: reservation was marked no-show", reservation.ErrTooLate)
	}
	to, err := Transition(r.Status, EventCheckIn)
	if err != nil {
		return Outcome{Reservation: r}, err
	}
	opens, closes := CheckInWindow(r, p)
	if now.Before(opens) {
		return Outcome{Reservation: r}, fmt.Errorf("%w: check-in opens at %s", reservation.ErrTooEarly, opens.Format(time.RFC3339))
	}
	if !now.Before(closes) {
		return Outcome{Reservation: r}, fmt.Errorf("%w: reservation ended at %s", reservation.ErrTooLate, closes.Format(time.RFC3339))
	}

	r.Status = to
	r.CheckedInAt = &now
	r.UpdatedAt = now
	return Outcome{Reservation: r, Intents: []Intent{analytics(AnalyticsCheckedIn)}}, nil
}

// CheckOut completes a checked-in reservation.
func CheckOut(r reservation.Reservation, now time.Time) (Outcome, error) {
	to, err := Transition(r.Status, EventCheckOut)
	if err != nil {
		return Outcome{Reservation: r}, err
	}
	if r.CheckedInAt == nil || now.Before(*r.CheckedInAt) {
		return Outcome{Reservation: r}, reservation.TransitionError{From: r.Status, Event: string(EventCheckOut)}
	}

	r.Status = to
	r.CheckedOutAt = &now
	r.UpdatedAt = now
	return Outcome{Reservation: r, Intents: []Intent{analytics(AnalyticsCompleted)}}, nil
}

// DeriveNoShow marks a confirmed reservation whose end has passed without a
// check-in as no-show. changed is false when nothing applies. No scheduled
// sweep exists; callers apply this whenever they load a reservation.
func DeriveNoShow(r reservation.Reservation, p policy.Policy, now time.Time) (out Outcome, changed bool) {
	out = Outcome{Reservation: r}
	if r.Status != reservation.StatusConfirmed || r.CheckedInAt != nil {
		return out, false
	}
	if !now.After(r.EndsAt(p.Loc())) {
		return out, false
	}
	r.Status, _ = Transition(r.Status, EventNoShow)
	r.UpdatedAt = now
	return Outcome{Reservation: r, Intents: []Intent{notify(NoticeNoShow), analytics(AnalyticsNoShow)}}, true
}
