// Package poll implements a pull-style refresh scheduler: a periodic tick
// that pauses while the consumer is hidden and fires immediately when
// visibility returns.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker { return &realTicker{t: time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()               { rt.t.Stop() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Tick is the refresh callback. Errors are logged, never fatal; the next
// tick retries.
type Tick func(ctx context.Context) error

// Scheduler drives a Tick at a fixed interval. While hidden it skips ticks;
// SetVisible(true) fires one immediately and resumes the cadence.
type Scheduler struct {
	logger   *slog.Logger
	clock    Clock
	interval time.Duration
	tick     Tick

	mu      sync.Mutex
	visible bool
	wake    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler builds a scheduler. A nil clock uses the wall clock.
func NewScheduler(logger *slog.Logger, clock Clock, interval time.Duration, tick Tick) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{
		logger:   logger,
		clock:    clock,
		interval: interval,
		tick:     tick,
		visible:  true,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the loop. An initial tick fires right away.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop terminates the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SetVisible flips the visibility signal. Regaining visibility fires a
// refresh immediately instead of waiting out the interval.
func (s *Scheduler) SetVisible(visible bool) {
	s.mu.Lock()
	was := s.visible
	s.visible = visible
	s.mu.Unlock()

	if visible && !was {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

func (s *Scheduler) isVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if s.isVisible() {
				s.fire(ctx)
			}
		case <-s.wake:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	if err := s.tick(ctx); err != nil {
		s.logger.Warn("poll tick", "error", err)
	}
}
