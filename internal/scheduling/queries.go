package scheduling

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/courtsched/internal/availability"
	"github.com/codr1/courtsched/internal/conflict"
	"github.com/codr1/courtsched/internal/policy"
	"github.com/codr1/courtsched/internal/timeslot"
)

const (
	maxCalendarDays         = 62
	calendarLoadParallelism = 4
	sharedReadTimeout       = 10 * time.Second
)

// GetAvailableSlots lists the free windows of a court on date. Concurrent
// identical calls share one computation. The shared load is detached from
// any single caller's cancellation; each caller still stops waiting when its
// own ctx ends.
func (s *Service) GetAvailableSlots(ctx context.Context, courtID int64, date civil.Date) (availability.Result, error) {
	key := fmt.Sprintf("slots:%d:%s", courtID, date)
	ch := s.reads.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		p, err := s.loadPolicy(shared, s.store, courtID)
		if err != nil {
			return availability.Result{}, err
		}
		return s.slotsFor(shared, courtID, date, p)
	})
	select {
	case <-ctx.Done():
		return availability.Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return availability.Result{}, res.Err
		}
		return res.Val.(availability.Result), nil
	}
}

func (s *Service) slotsFor(ctx context.Context, courtID int64, date civil.Date, p policy.Policy) (availability.Result, error) {
	now := s.clock.Now()
	today := timeslot.Today(now, p.Loc())
	if date.Before(today) || p.TooFarInAdvance(date, today) {
		return availability.ComputeFreeSlots(p, date, nil, s.slotStep, now), nil
	}
	existing, err := s.store.LoadActiveReservations(ctx, courtID, date)
	if err != nil {
		return availability.Result{}, fmt.Errorf("load active reservations: %w", err)
	}
	return availability.ComputeFreeSlots(p, date, existing, s.slotStep, now), nil
}

// CheckAvailability reports whether [start, end) on date could be booked
// now. A window that breaks the court policy is reported as unavailable
// together with the PolicyError.
func (s *Service) CheckAvailability(ctx context.Context, courtID int64, date civil.Date, start, end timeslot.TimeOfDay) (bool, error) {
	iv, err := timeslot.New(start, end)
	if err != nil {
		return false, err
	}
	p, err := s.loadPolicy(ctx, s.store, courtID)
	if err != nil {
		return false, err
	}
	if err := p.CheckBooking(date, iv, s.clock.Now()); err != nil {
		return false, err
	}
	existing, err := s.store.LoadActiveReservations(ctx, courtID, date)
	if err != nil {
		return false, fmt.Errorf("load active reservations: %w", err)
	}
	return availability.IsFree(iv, existing), nil
}

// DetectConflicts is the operator diagnostic: which active reservations
// overlap [start, end) on date, and by how much. Policy rules are not
// applied.
func (s *Service) DetectConflicts(ctx context.Context, courtID int64, date civil.Date, start, end timeslot.TimeOfDay) ([]conflict.Detail, error) {
	iv, err := timeslot.New(start, end)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadPolicy(ctx, s.store, courtID); err != nil {
		return nil, err
	}
	existing, err := s.store.LoadActiveReservations(ctx, courtID, date)
	if err != nil {
		return nil, fmt.Errorf("load active reservations: %w", err)
	}
	return conflict.Detect(iv, existing, 0), nil
}

// GetCourtAvailabilityCalendar computes free slots for every day in
// [from, to]. to is clamped to the last bookable day; a from beyond it
// yields an empty calendar.
func (s *Service) GetCourtAvailabilityCalendar(ctx context.Context, courtID int64, from, to civil.Date) ([]availability.Result, error) {
	if !from.IsValid() || !to.IsValid() || to.Before(from) {
		return nil, fmt.Errorf("%w: calendar range %s..%s", ErrInvalidRequest, from, to)
	}
	p, err := s.loadPolicy(ctx, s.store, courtID)
	if err != nil {
		return nil, err
	}

	today := timeslot.Today(s.clock.Now(), p.Loc())
	if last := p.LastBookableDate(today); to.After(last) {
		to = last
	}
	if from.Before(today) {
		from = today
	}
	if to.Before(from) {
		return []availability.Result{}, nil
	}
	days := to.DaysSince(from) + 1
	if days > maxCalendarDays {
		return nil, policy.PolicyError{Code: policy.ViolationTooFarAhead, Detail: fmt.Sprintf("calendar spans %d days, limit %d", days, maxCalendarDays)}
	}

	results := make([]availability.Result, days)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(calendarLoadParallelism)
	for i := 0; i < days; i++ {
		date := from.AddDays(i)
		g.Go(func() error {
			res, err := s.slotsFor(gctx, courtID, date, p)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Quote returns the rate-table price of a window without booking it.
func (s *Service) Quote(ctx context.Context, courtID int64, date civil.Date, start, end timeslot.TimeOfDay) (int64, error) {
	iv, err := timeslot.New(start, end)
	if err != nil {
		return 0, err
	}
	p, err := s.loadPolicy(ctx, s.store, courtID)
	if err != nil {
		return 0, err
	}
	if err := p.CheckDuration(iv); err != nil {
		return 0, err
	}
	return p.Quote(date, iv), nil
}
