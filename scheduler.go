package postcache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultRefreshInterval is how often the scheduler reloads the cache when no interval is configured.
const DefaultRefreshInterval = 5 * time.Minute

// Refresher is anything that can reload its cache. CachedPostStore implements it.
type Refresher interface {
	RefreshCache(ctx context.Context) error
}

// DelayFunc waits for d or until ctx is done, whichever comes first, returning ctx.Err() in the latter case.
type DelayFunc func(ctx context.Context, d time.Duration) error

// SchedulerOptions configures a RefreshScheduler.
type SchedulerOptions struct {
	Interval    time.Duration // Interval between refreshes. Default is DefaultRefreshInterval.
	WarmupDelay time.Duration // WarmupDelay is waited before the first refresh. Default is no delay.
	Delay       DelayFunc     // Delay is used for every wait. Default is a timer-based delay.
	Logger      *slog.Logger  // Logger is the logger used by the scheduler. Default is a debug logger to stderr.
}

// RefreshScheduler keeps a cache fresh in the background. It refreshes once after a warm-up delay and then
// on a fixed interval until its context is cancelled. Failed refreshes are logged and retried on the next
// tick; they never stop the loop.
type RefreshScheduler struct {
	refresher   Refresher
	interval    time.Duration
	warmupDelay time.Duration
	delay       DelayFunc
	logger      *slog.Logger
	ready       chan struct{}
	readyOnce   sync.Once
}

// NewRefreshScheduler creates a scheduler for refresher. Call Run to start it.
func NewRefreshScheduler(refresher Refresher, opts SchedulerOptions) *RefreshScheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultRefreshInterval
	}

	if opts.WarmupDelay < 0 {
		opts.WarmupDelay = 0
	}

	if opts.Delay == nil {
		opts.Delay = Sleep
	}

	if opts.Logger == nil {
		opts.Logger = defaultLogger()
	}

	return &RefreshScheduler{
		refresher:   refresher,
		interval:    opts.Interval,
		warmupDelay: opts.WarmupDelay,
		delay:       opts.Delay,
		logger:      opts.Logger,
		ready:       make(chan struct{}),
	}
}

// Ready is closed once the warm-up refresh has been attempted, or when Run stops before that.
func (s *RefreshScheduler) Ready() <-chan struct{} {
	return s.ready
}

// Run blocks until ctx is cancelled. Cancellation is a normal shutdown and Run returns nil.
func (s *RefreshScheduler) Run(ctx context.Context) error {
	defer s.markReady()

	s.logger.Info("post cache refresh scheduler starting",
		slog.Duration("interval", s.interval),
		slog.Duration("warmup", s.warmupDelay))

	if s.warmupDelay > 0 {
		if err := s.delay(ctx, s.warmupDelay); err != nil {
			return s.stopped(err)
		}
	}

	if stop := s.refresh(ctx); stop {
		return s.stopped(ctx.Err())
	}
	s.markReady()

	for {
		if err := s.delay(ctx, s.interval); err != nil {
			return s.stopped(err)
		}

		if stop := s.refresh(ctx); stop {
			return s.stopped(ctx.Err())
		}
	}
}

// refresh runs one refresh and reports whether the scheduler should stop.
func (s *RefreshScheduler) refresh(ctx context.Context) bool {
	err := s.refresher.RefreshCache(ctx)
	if ctx.Err() != nil {
		return true
	}

	if err != nil {
		s.logger.Error("scheduled post cache refresh failed", slog.String("error", err.Error()))
	}
	return false
}

func (s *RefreshScheduler) stopped(err error) error {
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.logger.Error("post cache refresh scheduler stopped", slog.String("error", err.Error()))
		return err
	}

	s.logger.Info("post cache refresh scheduler stopped")
	return nil
}

func (s *RefreshScheduler) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
