package reservation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codr1/courtsched/internal/timeslot"
)

var (
	ErrNotFound                    = errors.New("reservation not found")
	ErrSlotUnavailable             = errors.New("slot unavailable")
	ErrSlotNoLongerAvailable       = errors.New("slot no longer available")
	ErrInvalidTransition           = errors.New("invalid transition")
	ErrTooEarly                    = errors.New("check-in too early")
	ErrTooLate                     = errors.New("check-in too late")
	ErrCannotCancelPastReservation = errors.New("cannot cancel past reservation")
	ErrPaymentFailed               = errors.New("payment failed")
	ErrPaymentAmountMismatch       = errors.New("payment amount does not cover reservation")
)

// SlotUnavailableError lists the windows that block a requested booking.
// It deliberately carries no reservation owners.
type SlotUnavailableError struct {
	Windows []timeslot.Interval
	// Lost is set when a pending reservation lost the confirmation race.
	Lost bool
}

func (e SlotUnavailableError) Error() string {
	windows := make([]string, len(e.Windows))
	for i, w := range e.Windows {
		windows[i] = w.String()
	}
	kind := ErrSlotUnavailable
	if e.Lost {
		kind = ErrSlotNoLongerAvailable
	}
	return fmt.Sprintf("%s: conflicts with %s", kind, strings.Join(windows, ", "))
}

func (e SlotUnavailableError) Is(target error) bool {
	if target == ErrSlotUnavailable {
		return true
	}
	return e.Lost && target == ErrSlotNoLongerAvailable
}

// TransitionError reports an event that the current status does not allow.
type TransitionError struct {
	From  Status
	Event string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s not allowed from %s", e.Event, e.From)
}

func (e TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
