package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultReseedSchedule runs at 00:00:00 UTC daily.
const DefaultReseedSchedule = "0 0 0 * * *"

// Job is a named unit of scheduled work. Run receives a context that is
// cancelled when the scheduler stops.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler runs jobs on six-field cron schedules (seconds first) in UTC.
// A job still running when its next activation fires is skipped for that
// activation.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// AddJob registers job on schedule, e.g. "0 0 0 * * *" or "@every 1h".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { _ = s.run(s.ctx, job) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name, schedule, err)
	}
	s.log.Info().Str("job", job.Name).Str("schedule", schedule).Msg("job scheduled")
	return nil
}

// RunNow runs job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	return s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	began := time.Now()
	err := job.Run(ctx)

	ev := s.log.Info()
	if err != nil {
		ev = s.log.Error().Err(err)
	}
	ev.Str("job", job.Name).Dur("took", time.Since(began)).Msg("job finished")
	return err
}

// Next returns the earliest upcoming activation, or zero before Start.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

// Start begins firing scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs' contexts and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}
