package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/robfig/cron/v3"
)

// Scheduler triggers cleanup runs on a cron schedule. Runs never
// overlap: if a run is still in progress when the next trigger fires,
// the trigger is skipped.
type Scheduler struct {
	spec    string
	job     func(context.Context)
	cron    *cron.Cron
	busy    atomic.Bool
	mu      sync.Mutex
	running bool
	log     log15.Logger
}

// New returns a Scheduler firing job according to the standard cron
// expression spec.
func New(spec string, job func(context.Context), log log15.Logger) *Scheduler {
	return &Scheduler{
		spec: spec,
		job:  job,
		cron: cron.New(),
		log:  log,
	}
}

// Start validates the cron expression and begins triggering. The
// scheduler stops itself when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := cron.ParseStandard(s.spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.spec, err)
	}
	if _, err := s.cron.AddFunc(s.spec, func() { s.fire(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}
	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started", "schedule", s.spec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// fire runs the job unless the previous run is still in progress.
func (s *Scheduler) fire(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Warn("previous run still in progress, skipping trigger")
		return
	}
	defer s.busy.Store(false)
	s.job(ctx)
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.log.Info("scheduler stopped")
	}
}

// NextRun returns the next trigger time, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
