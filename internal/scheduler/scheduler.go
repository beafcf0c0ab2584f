package scheduler

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	service     *Service
	serviceOnce sync.Once
	serviceErr  error
)

var (
	ErrNotInitialized = errors.New("scheduler not initialized")
	ErrEmptyJobName   = errors.New("job name is required")
	ErrEmptyCronExpr  = errors.New("cron expression is required")
)

// Service runs the background jobs of the server process. Jobs are keyed by
// name; registering a name again replaces the earlier job.
type Service struct {
	scheduler gocron.Scheduler

	mu   sync.Mutex
	jobs map[string]uuid.UUID

	stopOnce sync.Once
	stopErr  error
}

// Init creates the process-wide scheduler. Later calls return the first
// result.
func Init(opts ...gocron.SchedulerOption) error {
	serviceOnce.Do(func() {
		service, serviceErr = New(opts...)
		if serviceErr == nil {
			log.Info().Msg("Scheduler initialized")
		}
	})
	return serviceErr
}

// New builds a scheduler that logs job panics and failures.
func New(opts ...gocron.SchedulerOption) (*Service, error) {
	listeners := gocron.WithGlobalJobOptions(
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
				log.Error().
					Str("job_id", jobID.String()).
					Str("job_name", jobName).
					Interface("panic", recoverData).
					Msg("Scheduler job panicked")
			}),
			gocron.AfterJobRunsWithError(func(jobID uuid.UUID, jobName string, err error) {
				log.Error().
					Err(err).
					Str("job_id", jobID.String()).
					Str("job_name", jobName).
					Msg("Scheduler job failed")
			}),
		),
	)
	sched, err := gocron.NewScheduler(append([]gocron.SchedulerOption{listeners}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Service{scheduler: sched, jobs: make(map[string]uuid.UUID)}, nil
}

func instance() (*Service, error) {
	if service == nil && serviceErr == nil {
		return nil, ErrNotInitialized
	}
	return service, serviceErr
}

func Start() error {
	svc, err := instance()
	if err != nil {
		return err
	}
	svc.Start()
	return nil
}

func Stop() error {
	svc, err := instance()
	if err != nil {
		return err
	}
	return svc.Stop()
}

// AddJob registers a cron job on the process-wide scheduler.
func AddJob(name, cronExpr string, task func(), opts ...gocron.JobOption) (gocron.Job, error) {
	svc, err := instance()
	if err != nil {
		return nil, err
	}
	return svc.AddJob(name, cronExpr, task, opts...)
}

func (s *Service) Start() {
	if s == nil {
		log.Error().Msg("Scheduler start requested before initialization")
		return
	}
	log.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("Scheduler starting")
	s.scheduler.Start()
}

// Stop waits for running jobs and prevents new runs.
func (s *Service) Stop() error {
	if s == nil {
		return ErrNotInitialized
	}
	s.stopOnce.Do(func() {
		log.Info().Msg("Scheduler stopping")
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// AddJob registers task on cronExpr (five fields, no seconds). opts are
// applied after the job name.
func (s *Service) AddJob(name, cronExpr string, task func(), opts ...gocron.JobOption) (gocron.Job, error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyJobName
	}
	if strings.TrimSpace(cronExpr) == "" {
		return nil, ErrEmptyCronExpr
	}
	jobLogger := log.With().Str("job_name", name).Str("cron", cronExpr).Logger()

	run := func() {
		jobLogger.Debug().Msg("Scheduler job started")
		task()
		jobLogger.Debug().Msg("Scheduler job completed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(run),
		append([]gocron.JobOption{gocron.WithName(name)}, opts...)...,
	)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to register scheduler job")
		return nil, err
	}
	if previous, ok := s.jobs[name]; ok {
		if err := s.scheduler.RemoveJob(previous); err != nil {
			jobLogger.Warn().Err(err).Msg("Failed to remove replaced scheduler job")
		}
	}
	s.jobs[name] = job.ID()
	jobLogger.Info().Msg("Scheduler job registered")
	return job, nil
}

// JobNames lists the registered jobs.
func (s *Service) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}
