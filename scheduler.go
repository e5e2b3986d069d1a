package paratest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// TestScheduler decides when test runs happen: once at startup, or
// repeatedly on a fixed interval until stopped.
type TestScheduler interface {
	Start(ctx context.Context) error
	Stop() error
	RegisterCallback(func() error)
	WaitForShutdown(ctx context.Context) error
	Stopped() bool
}

// DefaultTestScheduler fires the registered callback immediately on Start
// and then, unless configured for a single run, every interval until Stop.
type DefaultTestScheduler struct {
	interval time.Duration
	runOnce  bool
	logger   log.Logger
	callback func() error

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewDefaultTestScheduler creates a scheduler; interval is ignored when
// runOnce is set.
func NewDefaultTestScheduler(interval time.Duration, runOnce bool, logger log.Logger) *DefaultTestScheduler {
	return &DefaultTestScheduler{
		interval: interval,
		runOnce:  runOnce,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// RegisterCallback sets the function invoked for every scheduled run.
// Must be called before Start.
func (s *DefaultTestScheduler) RegisterCallback(callback func() error) {
	s.callback = callback
}

// Start kicks off the first run synchronously. In run-once mode that is
// the whole lifetime; otherwise a background loop keeps rerunning the
// callback on the interval.
func (s *DefaultTestScheduler) Start(ctx context.Context) error {
	if s.callback == nil {
		return errors.New("callback must be registered before starting scheduler")
	}

	s.done = make(chan struct{})
	s.running.Store(true)

	if s.runOnce {
		s.logger.Info("Running single test pass")
		return s.callback()
	}

	s.logger.Info("Scheduling repeated test runs", "interval", s.interval)

	// The first run happens before the loop so a broken setup surfaces
	// as a Start error instead of a background log line.
	if err := s.callback(); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Debug("Run loop started", "interval", s.interval)

		for {
			select {
			case <-time.After(s.interval):
				if !s.running.Load() {
					s.logger.Debug("Scheduler stopped, leaving run loop")
					return
				}

				s.logger.Info("Starting scheduled test run")
				if err := s.callback(); err != nil {
					s.logger.Error("Scheduled test run failed", "error", err)
				}
				s.logger.Info("Next run scheduled", "in", s.interval)

			case <-s.done:
				s.logger.Debug("Stop requested, leaving run loop")
				return

			case <-ctx.Done():
				s.logger.Debug("Context canceled, leaving run loop")
				s.running.Store(false)
				return
			}
		}
	}()

	return nil
}

// Stop signals the run loop to exit. Safe to call more than once and
// before Start.
func (s *DefaultTestScheduler) Stop() error {
	if !s.running.Load() {
		s.logger.Debug("Stop called on stopped scheduler")
		return nil
	}

	// Flip the flag before closing so a run that races the signal sees
	// the stop.
	s.running.Store(false)

	s.logger.Debug("Signaling run loop to exit")
	close(s.done)

	return nil
}

// Stopped reports whether the scheduler has been stopped or never started.
func (s *DefaultTestScheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the run loop has exited or the context
// expires.
func (s *DefaultTestScheduler) WaitForShutdown(ctx context.Context) error {
	s.logger.Debug("Waiting for run loop to exit")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("Run loop exited")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Gave up waiting for run loop to exit", "error", ctx.Err())
		return ctx.Err()
	}
}
