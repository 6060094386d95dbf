package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often a Sweeper purges expired entries.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically calls Sweep on a Sweepable store until stopped. A
// failed sweep is logged and retried on the next tick.
type Sweeper struct {
	target   Sweepable
	interval time.Duration
	logger   *zap.Logger
	onSweep  func(purged int, err error)

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// SweeperOption customizes a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval overrides DefaultSweepInterval.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSweepLogger sets the logger used for sweep results.
func WithSweepLogger(l *zap.Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSweepHook registers a callback invoked after every sweep.
func WithSweepHook(fn func(purged int, err error)) SweeperOption {
	return func(s *Sweeper) {
		s.onSweep = fn
	}
}

// NewSweeper builds a Sweeper for target. It does nothing until Start.
func NewSweeper(target Sweepable, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		target:   target,
		interval: DefaultSweepInterval,
		logger:   zap.NewNop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the sweep loop. Calling Start more than once has no effect.
func (s *Sweeper) Start() {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.run(ctx)
	})
}

// Stop cancels the loop and waits for it to exit. Safe to call without Start
// and more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		started := false
		s.startOnce.Do(func() {})
		if s.cancel != nil {
			started = true
			s.cancel()
		}
		if started {
			<-s.done
		}
	})
}

// SweepNow runs one sweep synchronously.
func (s *Sweeper) SweepNow(ctx context.Context) (int, error) {
	purged, err := s.target.Sweep(ctx)
	if err != nil {
		s.logger.Warn("sweep failed", zap.Error(err))
	} else if purged > 0 {
		s.logger.Debug("swept expired entries", zap.Int("purged", purged))
	}
	if s.onSweep != nil {
		s.onSweep(purged, err)
	}
	return purged, err
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.SweepNow(ctx)
		}
	}
}
