package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/bookie/internal/logging"
)

// Job is a unit of periodic maintenance work.
type Job func(ctx context.Context) error

// cronParser accepts standard five-field expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether schedule is a valid five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// NextRun returns the next activation of schedule after from.
func NextRun(schedule string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}

type entry struct {
	id       cron.EntryID
	schedule string
	job      Job
}

// Scheduler runs named jobs on cron schedules. Runs of the same job never
// overlap; a tick that fires while the previous run is busy is skipped.
type Scheduler struct {
	cron *cron.Cron

	mu      sync.RWMutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// New creates an idle scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under name. Jobs may be added before or after Start.
func (s *Scheduler) Add(name, schedule string, job Job) error {
	if err := ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q for %s: %w", schedule, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}

	e := &entry{schedule: schedule, job: job}
	id, err := s.cron.AddFunc(schedule, func() { s.run(name, e.job) })
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	e.id = id
	s.entries[name] = e

	logging.Info().Str("job", name).Str("schedule", schedule).Msg("job scheduled")
	return nil
}

// Start begins firing jobs. It stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.cron.Start()
	logging.Info().Int("jobs", len(s.Jobs())).Msg("scheduler started")

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.ctx.Done():
		}
	}()
}

// Stop cancels in-flight jobs and waits for them to return. A stopped
// scheduler is not restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	logging.Info().Msg("scheduler stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// NextRunTime returns when name fires next, or nil if it is unknown or the
// scheduler is stopped.
func (s *Scheduler) NextRunTime(name string) *time.Time {
	s.mu.RLock()
	e, ok := s.entries[name]
	running := s.running
	s.mu.RUnlock()
	if !ok || !running {
		return nil
	}
	next := s.cron.Entry(e.id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// RunNow executes name synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return e.job(ctx)
}

func (s *Scheduler) run(name string, job Job) {
	start := time.Now()
	if err := job(s.ctx); err != nil {
		logging.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(start)).Msg("scheduled job failed")
		return
	}
	logging.Info().Str("job", name).Dur("elapsed", time.Since(start)).Msg("scheduled job finished")
}
