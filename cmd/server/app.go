// cmd/server/app.go
package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtsched/internal/config"
	"github.com/codr1/courtsched/internal/db"
	"github.com/codr1/courtsched/internal/email"
	"github.com/codr1/courtsched/internal/events"
	"github.com/codr1/courtsched/internal/lock"
	"github.com/codr1/courtsched/internal/payment"
	"github.com/codr1/courtsched/internal/ratelimit"
	"github.com/codr1/courtsched/internal/scheduler"
	"github.com/codr1/courtsched/internal/scheduling"
)

// app owns the long-lived collaborators wired from configuration.
type app struct {
	db        *db.DB
	service   *scheduling.Service
	limiter   *ratelimit.Limiter
	notifier  *email.Notifier
	publisher *events.Publisher
	redis     *redis.Client

	reminderHours int
	closeOnce     sync.Once
}

func newApp(cfg *config.Config) (*app, error) {
	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &app{db: database, reminderHours: cfg.Reminders.HoursBefore}

	opts := []scheduling.Option{scheduling.WithSlotStep(cfg.Scheduling.SlotStepMinutes)}

	if cfg.Scheduling.LockBackend == config.LockBackendRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := a.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		locker, err := lock.NewRedis(a.redis, cfg.Redis.KeyPrefix+":lock:",
			lock.WithTTL(time.Duration(cfg.Scheduling.LockTTLSeconds)*time.Second))
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, scheduling.WithLocker(locker))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Using redis court locks")
	}

	if cfg.Email.Enabled {
		sender, err := email.NewSESClient(cfg.Email.AccessKeyID, cfg.Email.SecretAccessKey, cfg.Email.Region, cfg.Email.Sender)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create email sender: %w", err)
		}
		a.notifier = email.NewNotifier(sender, database, nil, cfg.Email.Sender)
		opts = append(opts, scheduling.WithNotifier(a.notifier))
	} else {
		log.Warn().Msg("Email notifications disabled")
	}

	if cfg.Events.Enabled {
		a.publisher, err = events.Dial(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect event broker: %w", err)
		}
		opts = append(opts, scheduling.WithEvents(a.publisher))
	}

	if cfg.Payments.Enabled {
		gateway, err := payment.NewGateway(cfg.Payments.PublicKey, cfg.Payments.SecretKey)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, scheduling.WithPayments(gateway))
	}

	a.service, err = scheduling.New(database.Store(), opts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	if perMinute := cfg.Scheduling.BookingAttemptsPerMinute; perMinute > 0 {
		a.limiter = ratelimit.New(&ratelimit.Config{
			Window:     time.Minute,
			MaxPerUser: perMinute,
			MaxPerIP:   perMinute * 6,
		})
	}
	return a, nil
}

func (a *app) reminders() *scheduler.Reminders {
	r := &scheduler.Reminders{Store: a.db, HoursBefore: a.reminderHours}
	if a.notifier != nil {
		r.Notifier = a.notifier
	}
	return r
}

// Close releases collaborators in reverse order of creation. Pending
// notification emails are given the chance to finish.
func (a *app) Close() {
	a.closeOnce.Do(func() {
		if a.limiter != nil {
			a.limiter.Close()
		}
		if a.notifier != nil {
			a.notifier.Wait()
		}
		if a.publisher != nil {
			if err := a.publisher.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close event publisher")
			}
		}
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close redis client")
			}
		}
		if err := a.db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	})
}
