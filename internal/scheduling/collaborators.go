package scheduling

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"

	"github.com/codr1/courtsched/internal/policy"
	"github.com/codr1/courtsched/internal/reservation"
)

var (
	ErrCourtNotFound  = errors.New("court not found")
	ErrInvalidRequest = errors.New("invalid request")
)

// Store is the persistence collaborator. Implementations return
// reservation.ErrNotFound and ErrCourtNotFound for missing rows.
type Store interface {
	LoadCourtPolicy(ctx context.Context, courtID int64) (policy.Policy, error)
	// LoadActiveReservations returns the reservations of courtID on date
	// whose status blocks the court.
	LoadActiveReservations(ctx context.Context, courtID int64, date civil.Date) ([]reservation.Reservation, error)
	LoadByID(ctx context.Context, id int64) (reservation.Reservation, error)
	// InsertReservation stores a new reservation and returns it with its id.
	InsertReservation(ctx context.Context, r reservation.Reservation) (reservation.Reservation, error)
	SaveReservation(ctx context.Context, r reservation.Reservation) error
	// RunInTx runs fn against a Store bound to one transaction, committing
	// when fn returns nil.
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}

// PaymentGateway executes refunds. Captures happen outside the engine and
// are reported through ConfirmPayment.
type PaymentGateway interface {
	Refund(ctx context.Context, paymentID string, amount int64) error
}

// Notifier delivers reservation notices to the booking user.
type Notifier interface {
	Notify(ctx context.Context, template string, r reservation.Reservation) error
}

// EventPublisher emits analytics events.
type EventPublisher interface {
	Publish(ctx context.Context, event string, r reservation.Reservation) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
