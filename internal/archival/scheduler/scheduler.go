// Package scheduler runs the archival sweep on a fixed wall-clock schedule
// and keeps a lightweight periodic self-check alongside it. Jobs are named,
// individually startable and stoppable, and report their own status.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"verikeep/internal/archival/orchestrator"
	dErrors "verikeep/pkg/domain-errors"
)

const (
	JobArchival    = "archival"
	JobHealthCheck = "health_check"
)

// JobStatus is one job's externally visible state.
type JobStatus struct {
	Name     string     `json:"name"`
	Running  bool       `json:"running"`
	Interval string     `json:"interval"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  *time.Time `json:"next_run,omitempty"`
}

type job struct {
	name     string
	interval time.Duration
	fn       func(context.Context)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	lastRun *time.Time
	nextRun *time.Time
}

type Scheduler struct {
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
	now    func() time.Time
	jobs   []*job
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New builds a scheduler with the two standing jobs: the archival run at
// archivalInterval and the stats self-check at healthInterval.
func New(orch *orchestrator.Orchestrator, archivalInterval, healthInterval time.Duration, opts ...Option) (*Scheduler, error) {
	if orch == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "orchestrator is required")
	}
	if archivalInterval <= 0 || healthInterval <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "job intervals must be positive")
	}

	s := &Scheduler{
		orch:   orch,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.jobs = []*job{
		{name: JobArchival, interval: archivalInterval, fn: s.runArchival},
		{name: JobHealthCheck, interval: healthInterval, fn: s.runHealthCheck},
	}
	return s, nil
}

// StartAll starts every job that is not already running.
func (s *Scheduler) StartAll() {
	for _, j := range s.jobs {
		s.start(j)
	}
}

// StopAll stops every running job and waits for each loop to exit.
func (s *Scheduler) StopAll() {
	for _, j := range s.jobs {
		s.stop(j)
	}
}

// Start starts one named job. Starting a running job is a no-op.
func (s *Scheduler) Start(name string) error {
	j := s.find(name)
	if j == nil {
		return dErrors.New(dErrors.CodeNotFound, "unknown job "+name)
	}
	s.start(j)
	return nil
}

// Stop stops one named job and waits for its loop to exit.
func (s *Scheduler) Stop(name string) error {
	j := s.find(name)
	if j == nil {
		return dErrors.New(dErrors.CodeNotFound, "unknown job "+name)
	}
	s.stop(j)
	return nil
}

// Trigger runs the archival sweep immediately, under the same guard as a
// scheduled run: a sweep already in progress makes it a no-op error.
func (s *Scheduler) Trigger(ctx context.Context) (*orchestrator.RunSummary, error) {
	summary, err := s.orch.Run(ctx)
	if err != nil {
		return nil, err
	}
	s.stamp(JobArchival, summary.Finished)
	return summary, nil
}

// Status reports every job's state.
func (s *Scheduler) Status() []JobStatus {
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		out = append(out, JobStatus{
			Name:     j.name,
			Running:  j.running,
			Interval: j.interval.String(),
			LastRun:  j.lastRun,
			NextRun:  j.nextRun,
		})
		j.mu.Unlock()
	}
	return out
}

func (s *Scheduler) find(name string) *job {
	for _, j := range s.jobs {
		if j.name == name {
			return j
		}
	}
	return nil
}

func (s *Scheduler) start(j *job) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	next := s.now().UTC().Add(j.interval)
	j.nextRun = &next
	j.mu.Unlock()

	s.logger.Info("job started", "job", j.name, "interval", j.interval)
	go s.loop(j)
}

func (s *Scheduler) stop(j *job) {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.mu.Unlock()

	<-j.doneCh

	j.mu.Lock()
	j.running = false
	j.nextRun = nil
	j.mu.Unlock()
	s.logger.Info("job stopped", "job", j.name)
}

func (s *Scheduler) loop(j *job) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.fn(ctx)

			now := s.now().UTC()
			next := now.Add(j.interval)
			j.mu.Lock()
			j.lastRun = &now
			j.nextRun = &next
			j.mu.Unlock()
		}
	}
}

func (s *Scheduler) stamp(name string, at time.Time) {
	j := s.find(name)
	if j == nil {
		return
	}
	j.mu.Lock()
	j.lastRun = &at
	j.mu.Unlock()
}

func (s *Scheduler) runArchival(ctx context.Context) {
	summary, err := s.orch.Run(ctx)
	if err != nil {
		if errors.Is(err, orchestrator.ErrRunInProgress) {
			s.logger.Warn("skipping scheduled archival run, another run in progress")
			return
		}
		s.logger.Error("scheduled archival run failed", "error", err)
		return
	}
	s.logger.Info("scheduled archival run finished",
		"started", summary.Started, "finished", summary.Finished)
}

// runHealthCheck confirms the orchestrator's stats are reachable. It exists
// to surface a broken config store between daily runs, not to be a full
// health probe.
func (s *Scheduler) runHealthCheck(ctx context.Context) {
	if _, err := s.orch.Stats(ctx); err != nil {
		s.logger.Error("archival health check failed", "error", err)
		return
	}
	s.logger.Debug("archival health check passed")
}
