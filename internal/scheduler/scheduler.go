package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// JobStatus describes the last run of a scheduled job.
type JobStatus struct {
	Name     string        `json:"name"`
	Spec     string        `json:"spec"`
	Next     time.Time     `json:"next"`
	LastRun  time.Time     `json:"last_run,omitempty"`
	LastErr  string        `json:"last_error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Runs     int           `json:"runs"`
}

type job struct {
	id      cron.EntryID
	name    string
	spec    string
	timeout time.Duration
	fn      JobFunc

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	took    time.Duration
	runs    int
}

// Scheduler manages background jobs such as retraining and outcome pruning.
// A job never overlaps with itself; a run that is still going when the next
// tick fires makes the scheduler skip that tick.
type Scheduler struct {
	cron            *cron.Cron
	logger          *logrus.Entry
	mu              sync.RWMutex
	isRunning       bool
	jobs            []*job
	gracefulTimeout time.Duration
	baseCtx         context.Context
	cancel          context.CancelFunc
}

// NewScheduler creates a new scheduler
func NewScheduler(logger *logrus.Logger) *Scheduler {
	entry := logger.WithField("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:          entry,
		gracefulTimeout: 30 * time.Second,
		baseCtx:         ctx,
		cancel:          cancel,
	}
}

// AddJob schedules fn under a standard five-field cron spec or a descriptor
// such as "@every 1h". Each run gets its own timeout.
func (s *Scheduler) AddJob(name, spec string, timeout time.Duration, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	j := &job{name: name, spec: spec, timeout: timeout, fn: fn}
	entryID, err := s.cron.AddFunc(spec, func() { s.run(j) })
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}
	j.id = entryID
	s.jobs = append(s.jobs, j)

	s.logger.WithFields(logrus.Fields{"job": name, "spec": spec}).Info("Scheduled job")
	return nil
}

// RunNow executes a job synchronously outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	var target *job
	for _, j := range s.jobs {
		if j.name == name {
			target = j
		}
	}
	s.mu.RUnlock()

	if target == nil {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.run(target)
}

func (s *Scheduler) run(j *job) error {
	ctx := s.baseCtx
	var cancel context.CancelFunc
	if j.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	err := j.fn(ctx)
	took := time.Since(start)

	j.mu.Lock()
	j.lastRun = start
	j.lastErr = err
	j.took = took
	j.runs++
	j.mu.Unlock()

	fields := logrus.Fields{"job": j.name, "duration": took.String()}
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Error("Scheduled job failed")
	} else {
		s.logger.WithFields(fields).Info("Scheduled job completed")
	}
	return err
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobs)).Info("Scheduler started")

	return nil
}

// Stop cancels running jobs and waits for them to return, up to the graceful timeout.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	done := s.cron.Stop().Done()
	s.cancel()
	s.isRunning = false

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler stop timed out after %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, j := range s.jobs {
		entry := s.cron.Entry(j.id)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}

	return nextRun
}

// Status returns the state of every scheduled job.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		st := JobStatus{
			Name:     j.name,
			Spec:     j.spec,
			Next:     s.cron.Entry(j.id).Next,
			LastRun:  j.lastRun,
			Duration: j.took,
			Runs:     j.runs,
		}
		if j.lastErr != nil {
			st.LastErr = j.lastErr.Error()
		}
		j.mu.Unlock()
		out = append(out, st)
	}
	return out
}
