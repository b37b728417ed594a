/*
scheduler.go - Background consistency sweep scheduler

PURPOSE:
  Periodically runs project.Service.Sweep so that duplicates and orphans
  that slipped past the per-mutation pass (manual data edits, imports,
  older writers) are cleaned up without anyone calling the admin endpoint.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Each sweep is bounded by Timeout
  - Sweep runs are recorded by stores that keep sweep history

CONFIGURATION:
  - Interval: How often to sweep (0 disables the scheduler)
  - Timeout:  Upper bound for one sweep (default: 10 minutes)

USAGE:
  scheduler := NewSweepScheduler(svc, log, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunSweep endpoint (manual sweep)
  - project/admin.go: Service.Sweep
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/logger"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/project"
)

// SweepScheduler runs consistency sweeps on a fixed interval.
type SweepScheduler struct {
	Service  *project.Service
	Log      *logger.Logger
	Interval time.Duration
	Timeout  time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweepScheduler creates a new scheduler.
func NewSweepScheduler(svc *project.Service, log *logger.Logger, interval time.Duration) *SweepScheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &SweepScheduler{
		Service:  svc,
		Log:      log,
		Interval: interval,
		Timeout:  10 * time.Minute,
	}
}

// Start begins the scheduler. It is a no-op when Interval is not positive
// or the scheduler is already running.
func (s *SweepScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Interval <= 0 {
		s.Log.Info("sweep scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Log.Info("sweep scheduler started", "interval", s.Interval.String())
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Log.Info("sweep scheduler stopped")
}

func (s *SweepScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce(stop)
		case <-stop:
			return
		}
	}
}

func (s *SweepScheduler) sweepOnce(stop <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	// Cancel an in-flight sweep when the scheduler stops.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-stop:
			cancel()
		case <-done:
		}
	}()

	if _, err := s.Service.Sweep(ctx); err != nil {
		s.Log.Error("scheduled sweep failed", "error", err)
	}
}
