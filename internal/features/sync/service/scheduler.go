package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"delivery-verification/internal/core/config"
	"delivery-verification/internal/core/logger"
	"delivery-verification/internal/features/sync/ports"

	"go.uber.org/zap"
)

// JobName identifies the periodic reconciliation job.
const JobName = "sync_verifications"

// ErrSyncInProgress is returned when a trigger arrives while a pass runs.
// The caller is expected to treat it as "already being handled".
var ErrSyncInProgress = errors.New("sync already in progress")

// PassRunner executes one reconciliation pass.
type PassRunner interface {
	Run(ctx context.Context) (int, error)
}

// PassOutcome records the result of the most recent pass.
type PassOutcome struct {
	// FinishedAt is when the pass ended.
	FinishedAt time.Time `json:"finished_at"`
	// Synced is the number of records pushed.
	Synced int `json:"synced"`
	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`
}

// Status is a snapshot of the scheduler state.
type Status struct {
	// Job is the periodic job name.
	Job string `json:"job"`
	// Scheduled reports whether the periodic job is active.
	Scheduled bool `json:"scheduled"`
	// LastPass is the outcome of the most recent pass, if any.
	LastPass *PassOutcome `json:"last_pass,omitempty"`
}

// Scheduler owns the periodic reconciliation job and the manual trigger.
// At most one pass runs at a time; a trigger that finds a pass in flight
// coalesces into it instead of queueing a second one.
type Scheduler struct {
	runner       PassRunner
	connectivity ports.Connectivity
	config       config.SyncConfig
	logger       *zap.Logger

	// passMu serializes passes across the periodic loop and manual triggers.
	passMu sync.Mutex

	mu        sync.Mutex
	scheduled bool
	cancel    context.CancelFunc
	done      chan struct{}
	lastPass  *PassOutcome
}

// NewScheduler creates a new Scheduler.
func NewScheduler(runner PassRunner, connectivity ports.Connectivity, cfg config.SyncConfig) *Scheduler {
	return &Scheduler{
		runner:       runner,
		connectivity: connectivity,
		config:       cfg,
		logger:       logger.Named(JobName),
	}
}

// SyncNow runs one pass immediately. Returns ErrSyncInProgress when another
// pass is already running.
func (s *Scheduler) SyncNow(ctx context.Context) (int, error) {
	if !s.passMu.TryLock() {
		return 0, ErrSyncInProgress
	}
	defer s.passMu.Unlock()

	synced, err := s.runner.Run(ctx)

	outcome := &PassOutcome{FinishedAt: time.Now().UTC(), Synced: synced}
	if err != nil {
		outcome.Error = err.Error()
	}
	s.mu.Lock()
	s.lastPass = outcome
	s.mu.Unlock()

	return synced, err
}

// Start launches the periodic job. Passes run every configured interval
// while the remote system is reachable; failures back off exponentially
// between the configured bounds. Starting an already scheduled job is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduled {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.scheduled = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(runCtx)
	s.logger.Info("Periodic sync scheduled", zap.Duration("interval", s.config.Interval))
}

// Stop cancels the periodic job and waits for the loop to exit. A pass
// already in flight finishes its current item set under its own context.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.scheduled {
		s.mu.Unlock()
		return
	}
	s.scheduled = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("Periodic sync cancelled")
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Job:       JobName,
		Scheduled: s.scheduled,
		LastPass:  s.lastPass,
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	delay := s.config.Interval
	backoff := s.config.MinBackoff

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if !s.connectivity.Online(ctx) {
			s.logger.Debug("Remote unreachable, delaying sync", zap.Duration("backoff", backoff))
			delay, backoff = backoff, s.nextBackoff(backoff)
			continue
		}

		_, err := s.SyncNow(ctx)
		switch {
		case errors.Is(err, ErrSyncInProgress):
			// A manual trigger owns this cycle; check again next interval.
			delay = s.config.Interval
		case err != nil:
			s.logger.Warn("Periodic sync failed", zap.Error(err))
			delay, backoff = backoff, s.nextBackoff(backoff)
		default:
			delay, backoff = s.config.Interval, s.config.MinBackoff
		}
	}
}

func (s *Scheduler) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > s.config.MaxBackoff {
		return s.config.MaxBackoff
	}
	return next
}
