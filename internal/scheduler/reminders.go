package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtsched/internal/lifecycle"
	"github.com/codr1/courtsched/internal/reservation"
	"github.com/codr1/courtsched/internal/scheduling"
)

const (
	defaultReminderHoursBefore = 24
	reminderJobWindow          = 15 * time.Minute
	reminderJobName            = "reservation_reminders"
)

// ReminderStore lists confirmed reservations due a reminder and records sent
// reminders so overlapping runs do not repeat them.
type ReminderStore interface {
	ListReservationsStartingBetween(ctx context.Context, from, to time.Time) ([]reservation.Reservation, error)
	MarkReminderSent(ctx context.Context, id int64, at time.Time) error
}

// Reminders emails users whose confirmed reservation starts HoursBefore
// hours from now.
type Reminders struct {
	Store       ReminderStore
	Notifier    scheduling.Notifier
	HoursBefore int
	Window      time.Duration
	Clock       scheduling.Clock
}

// RegisterReminderJobs registers the reservation reminder task on cronExpr.
func RegisterReminderJobs(cronExpr string, reminders *Reminders) error {
	if reminders == nil || reminders.Store == nil {
		return fmt.Errorf("reminder jobs require a store")
	}

	jobLogger := log.With().
		Str("component", "reservation_reminders_job").
		Str("job_name", reminderJobName).
		Str("cron", cronExpr).
		Logger()

	_, err := AddJob(reminderJobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		if reminders.Notifier == nil {
			jobLogger.Debug().Msg("Reminder job skipped: notifier not configured")
			return
		}
		sent, err := reminders.Run(ctx)
		if err != nil {
			jobLogger.Error().Err(err).Int("sent", sent).Msg("Reminder job failed")
			return
		}
		if sent > 0 {
			jobLogger.Info().Int("sent", sent).Msg("Reservation reminders sent")
		}
	}, gocron.WithSingletonMode(gocron.LimitModeWait))
	if err != nil {
		return fmt.Errorf("add reservation reminder job: %w", err)
	}

	jobLogger.Info().Msg("Reservation reminder job registered")
	return nil
}

// Run sends the reminders due now and returns how many went out. A failure
// for one reservation does not stop the others.
func (r *Reminders) Run(ctx context.Context) (int, error) {
	logger := zerolog.Ctx(ctx)

	now := time.Now()
	if r.Clock != nil {
		now = r.Clock.Now()
	}
	hours := r.HoursBefore
	if hours <= 0 {
		hours = defaultReminderHoursBefore
	}
	window := r.Window
	if window <= 0 {
		window = reminderJobWindow
	}

	windowStart := now.Add(time.Duration(hours) * time.Hour)
	due, err := r.Store.ListReservationsStartingBetween(ctx, windowStart, windowStart.Add(window))
	if err != nil {
		return 0, fmt.Errorf("load reservations for reminders: %w", err)
	}

	var (
		sent int
		errs []error
	)
	for _, res := range due {
		if err := r.Notifier.Notify(ctx, lifecycle.NoticeReminder, res); err != nil {
			logger.Error().Err(err).Int64("reservation_id", res.ID).Msg("Failed to send reminder")
			errs = append(errs, err)
			continue
		}
		if err := r.Store.MarkReminderSent(ctx, res.ID, now); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}
