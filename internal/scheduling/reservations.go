package scheduling

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/codr1/courtsched/internal/lifecycle"
	"github.com/codr1/courtsched/internal/lock"
	"github.com/codr1/courtsched/internal/policy"
	"github.com/codr1/courtsched/internal/reservation"
	"github.com/codr1/courtsched/internal/timeslot"
)

// CreateRequest asks for a new booking of CourtID on Date from Start to End,
// in the court's local time.
type CreateRequest struct {
	CourtID int64
	UserID  string
	Date    civil.Date
	Start   timeslot.TimeOfDay
	End     timeslot.TimeOfDay
}

// CancelResult reports the refund tier applied to a cancellation.
type CancelResult struct {
	Reservation      reservation.Reservation `json:"reservation"`
	RefundPercentage int64                   `json:"refund_percentage"`
	RefundAmount     int64                   `json:"refund_amount"`
}

// CreateReservation validates and stores a new pending reservation. The
// availability check and the insert run under the court/day lock and in one
// transaction, so two overlapping requests cannot both succeed.
func (s *Service) CreateReservation(ctx context.Context, req CreateRequest) (reservation.Reservation, error) {
	if req.CourtID <= 0 {
		return reservation.Reservation{}, fmt.Errorf("%w: court id must be positive", ErrInvalidRequest)
	}
	if req.UserID == "" {
		return reservation.Reservation{}, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if !req.Date.IsValid() {
		return reservation.Reservation{}, fmt.Errorf("%w: invalid date", ErrInvalidRequest)
	}
	iv, err := timeslot.New(req.Start, req.End)
	if err != nil {
		return reservation.Reservation{}, err
	}

	logger := s.logger(ctx).With().
		Int64("court_id", req.CourtID).
		Str("date", req.Date.String()).
		Str("interval", iv.String()).
		Logger()

	unlock, err := s.locker.Lock(ctx, lock.CourtDayKey(req.CourtID, req.Date))
	if err != nil {
		return reservation.Reservation{}, err
	}
	defer unlock()

	var out lifecycle.Outcome
	err = s.store.RunInTx(ctx, func(tx Store) error {
		p, err := s.loadPolicy(ctx, tx, req.CourtID)
		if err != nil {
			return err
		}
		existing, err := tx.LoadActiveReservations(ctx, req.CourtID, req.Date)
		if err != nil {
			return fmt.Errorf("load active reservations: %w", err)
		}
		out, err = lifecycle.Create(p, lifecycle.Draft{
			CourtID:  req.CourtID,
			UserID:   req.UserID,
			Date:     req.Date,
			Interval: iv,
		}, existing, s.clock.Now())
		if err != nil {
			return err
		}
		out.Reservation, err = tx.InsertReservation(ctx, out.Reservation)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, reservation.ErrSlotUnavailable) || errors.Is(err, policy.ErrPolicyViolation) {
			logger.Info().Err(err).Msg("Reservation request rejected")
		} else {
			logger.Error().Err(err).Msg("Failed to create reservation")
		}
		return reservation.Reservation{}, err
	}

	logger.Info().Int64("reservation_id", out.Reservation.ID).Msg("Reservation created")
	s.dispatch(ctx, out.Reservation, out.Intents)
	return out.Reservation, nil
}

// ConfirmPayment records a payment capture for a pending reservation. The
// court/day is re-checked under the lock; if another reservation took the
// window first this one is cancelled, the payment is refunded, and an error
// matching reservation.ErrSlotNoLongerAvailable is returned.
func (s *Service) ConfirmPayment(ctx context.Context, id int64, result lifecycle.PaymentResult) (reservation.Reservation, error) {
	return s.apply(ctx, id, "confirm_payment", func(ctx context.Context, tx Store, r reservation.Reservation, _ policy.Policy) (lifecycle.Outcome, error) {
		existing, err := tx.LoadActiveReservations(ctx, r.CourtID, r.Date)
		if err != nil {
			return lifecycle.Outcome{}, fmt.Errorf("load active reservations: %w", err)
		}
		return lifecycle.ConfirmPayment(r, result, existing, s.clock.Now())
	})
}

// CancelReservation cancels a reservation before its start and applies the
// court's refund tiers. Authorising actorID is the caller's job.
func (s *Service) CancelReservation(ctx context.Context, id int64, actorID, reason string) (CancelResult, error) {
	r, err := s.apply(ctx, id, "cancel", func(ctx context.Context, _ Store, r reservation.Reservation, p policy.Policy) (lifecycle.Outcome, error) {
		return lifecycle.Cancel(r, p, actorID, reason, s.clock.Now())
	})
	if err != nil {
		return CancelResult{}, err
	}
	result := CancelResult{Reservation: r}
	if r.RefundPercentage != nil {
		result.RefundPercentage = *r.RefundPercentage
	}
	if r.RefundAmount != nil {
		result.RefundAmount = *r.RefundAmount
	}
	return result, nil
}

func (s *Service) CheckIn(ctx context.Context, id int64) (reservation.Reservation, error) {
	return s.apply(ctx, id, "check_in", func(_ context.Context, _ Store, r reservation.Reservation, p policy.Policy) (lifecycle.Outcome, error) {
		return lifecycle.CheckIn(r, p, s.clock.Now())
	})
}

func (s *Service) CheckOut(ctx context.Context, id int64) (reservation.Reservation, error) {
	return s.apply(ctx, id, "check_out", func(_ context.Context, _ Store, r reservation.Reservation, _ policy.Policy) (lifecycle.Outcome, error) {
		return lifecycle.CheckOut(r, s.clock.Now())
	})
}

// GetReservation loads a reservation, marking it no-show first when its end
// has passed without a check-in.
func (s *Service) GetReservation(ctx context.Context, id int64) (reservation.Reservation, error) {
	r, err := s.store.LoadByID(ctx, id)
	if err != nil {
		return reservation.Reservation{}, err
	}
	p, err := s.loadPolicy(ctx, s.store, r.CourtID)
	if err != nil {
		return reservation.Reservation{}, err
	}
	if _, changed := lifecycle.DeriveNoShow(r, p, s.clock.Now()); !changed {
		return r, nil
	}
	// Only a due no-show write needs the lock and a transaction.
	return s.apply(ctx, id, "get", nil)
}

type step func(ctx context.Context, tx Store, r reservation.Reservation, p policy.Policy) (lifecycle.Outcome, error)

// apply runs one lifecycle step for reservation id under the court/day lock
// and inside a transaction. The lazy no-show derivation is stored even when
// the step itself is rejected. Rejections come back as the step's error
// unchanged.
func (s *Service) apply(ctx context.Context, id int64, action string, fn step) (reservation.Reservation, error) {
	logger := s.logger(ctx).With().Int64("reservation_id", id).Str("action", action).Logger()

	current, err := s.store.LoadByID(ctx, id)
	if err != nil {
		return reservation.Reservation{}, err
	}
	unlock, err := s.locker.Lock(ctx, lock.CourtDayKey(current.CourtID, current.Date))
	if err != nil {
		return reservation.Reservation{}, err
	}
	defer unlock()

	var (
		result  reservation.Reservation
		intents []lifecycle.Intent
		stepErr error
	)
	err = s.store.RunInTx(ctx, func(tx Store) error {
		intents = nil
		stepErr = nil

		r, err := tx.LoadByID(ctx, id)
		if err != nil {
			return err
		}
		p, err := s.loadPolicy(ctx, tx, r.CourtID)
		if err != nil {
			return err
		}

		if derived, changed := lifecycle.DeriveNoShow(r, p, s.clock.Now()); changed {
			r = derived.Reservation
			if err := tx.SaveReservation(ctx, r); err != nil {
				return fmt.Errorf("save no-show: %w", err)
			}
			intents = append(intents, derived.Intents...)
		}
		result = r
		if fn == nil {
			return nil
		}

		out, err := fn(ctx, tx, r, p)
		switch {
		case err == nil:
		case errors.Is(err, reservation.ErrSlotNoLongerAvailable):
			stepErr = err
		default:
			stepErr = err
			return nil
		}
		if err := tx.SaveReservation(ctx, out.Reservation); err != nil {
			return fmt.Errorf("save reservation: %w", err)
		}
		result = out.Reservation
		intents = append(intents, out.Intents...)
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to update reservation")
		return reservation.Reservation{}, err
	}

	s.dispatch(ctx, result, intents)
	if stepErr != nil {
		logger.Info().Err(stepErr).Str("status", result.Status.String()).Msg("Reservation transition rejected")
		return result, stepErr
	}
	if fn != nil {
		logger.Info().Str("status", result.Status.String()).Msg("Reservation updated")
	}
	return result, nil
}
