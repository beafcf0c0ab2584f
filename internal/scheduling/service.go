// Package scheduling is the entry point the rest of the application calls to
// book, pay for, cancel and check in to court reservations, and to query
// availability.
package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/codr1/courtsched/internal/lifecycle"
	"github.com/codr1/courtsched/internal/lock"
	"github.com/codr1/courtsched/internal/policy"
	"github.com/codr1/courtsched/internal/reservation"
)

// Service orchestrates the scheduling rules against its collaborators. It
// keeps no reservation state between calls.
type Service struct {
	store    Store
	clock    Clock
	locker   lock.Locker
	payments PaymentGateway
	notifier Notifier
	events   EventPublisher
	slotStep int

	reads singleflight.Group
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLocker replaces the in-process court/day lock, e.g. with a Redis lock
// when several processes share one database.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithPayments(p PaymentGateway) Option {
	return func(s *Service) { s.payments = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithEvents(e EventPublisher) Option {
	return func(s *Service) { s.events = e }
}

// WithSlotStep sets the start-time step used when listing free slots. Zero
// uses each court's granularity.
func WithSlotStep(minutes int) Option {
	return func(s *Service) {
		if minutes >= 0 {
			s.slotStep = minutes
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("scheduling service requires a store")
	}
	s := &Service{
		store:  store,
		clock:  systemClock{},
		locker: lock.NewLocal(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) logger(ctx context.Context) zerolog.Logger {
	return log.Ctx(ctx).With().Str("component", "scheduling").Logger()
}

// dispatch carries out the side effects of a stored transition. Failures are
// logged; the reservation change has already been committed.
func (s *Service) dispatch(ctx context.Context, r reservation.Reservation, intents []lifecycle.Intent) {
	logger := s.logger(ctx).With().Int64("reservation_id", r.ID).Int64("court_id", r.CourtID).Logger()
	for _, intent := range intents {
		var err error
		switch intent.Kind {
		case lifecycle.IntentNotify:
			if s.notifier == nil {
				continue
			}
			err = s.notifier.Notify(ctx, intent.Template, r)
		case lifecycle.IntentRefund:
			if s.payments == nil {
				logger.Warn().Int64("amount", intent.Amount).Msg("Refund requested but no payment gateway configured")
				continue
			}
			err = s.payments.Refund(ctx, intent.PaymentID, intent.Amount)
		case lifecycle.IntentAnalytics:
			if s.events == nil {
				continue
			}
			err = s.events.Publish(ctx, intent.Event, r)
		}
		if err != nil {
			logger.Error().Err(err).Str("intent", string(intent.Kind)).Msg("Failed to execute reservation side effect")
		}
	}
}

func (s *Service) loadPolicy(ctx context.Context, store Store, courtID int64) (policy.Policy, error) {
	p, err := store.LoadCourtPolicy(ctx, courtID)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("load court %d policy: %w", courtID, err)
	}
	return p, nil
}
