package postcache_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergopher/postcache"
)

type fakeRefresher struct {
	calls atomic.Int32
	err   error
	hook  func(n int32)
}

func (f *fakeRefresher) RefreshCache(ctx context.Context) error {
	n := f.calls.Add(1)
	if f.hook != nil {
		f.hook(n)
	}
	return f.err
}

// fakeDelay records every wait and cancels after the given number of waits.
type fakeDelay struct {
	mu     sync.Mutex
	waits  []time.Duration
	cancel context.CancelFunc
	after  int
}

func (f *fakeDelay) delay(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	n := len(f.waits)
	f.mu.Unlock()

	if n >= f.after {
		f.cancel()
	}
	return ctx.Err()
}

func (f *fakeDelay) recorded() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.waits...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRefreshScheduler_WarmupThenInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refresher := &fakeRefresher{}
	delay := &fakeDelay{cancel: cancel, after: 3}

	scheduler := postcache.NewRefreshScheduler(refresher, postcache.SchedulerOptions{
		Interval:    time.Minute,
		WarmupDelay: 5 * time.Second,
		Delay:       delay.delay,
		Logger:      discardLogger(),
	})

	err := scheduler.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{5 * time.Second, time.Minute, time.Minute}, delay.recorded())
	assert.Equal(t, int32(2), refresher.calls.Load())

	select {
	case <-scheduler.Ready():
	default:
		t.Fatal("scheduler should be ready after Run returns")
	}
}

func TestRefreshScheduler_DefaultInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	delay := &fakeDelay{cancel: cancel, after: 1}
	scheduler := postcache.NewRefreshScheduler(&fakeRefresher{}, postcache.SchedulerOptions{
		Delay:  delay.delay,
		Logger: discardLogger(),
	})

	require.NoError(t, scheduler.Run(ctx))
	assert.Equal(t, []time.Duration{postcache.DefaultRefreshInterval}, delay.recorded())
}

func TestRefreshScheduler_ContinuesAfterFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refresher := &fakeRefresher{err: errStoreDown}
	delay := &fakeDelay{cancel: cancel, after: 3}

	scheduler := postcache.NewRefreshScheduler(refresher, postcache.SchedulerOptions{
		Interval: time.Second,
		Delay:    delay.delay,
		Logger:   discardLogger(),
	})

	require.NoError(t, scheduler.Run(ctx))
	assert.Equal(t, int32(3), refresher.calls.Load())
}

func TestRefreshScheduler_ReadyAfterFirstRefresh(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refresher := &fakeRefresher{}
	scheduler := postcache.NewRefreshScheduler(refresher, postcache.SchedulerOptions{
		Interval: time.Hour,
		Logger:   discardLogger(),
	})

	done := make(chan error, 1)
	go func() {
		done <- scheduler.Run(ctx)
	}()

	select {
	case <-scheduler.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never became ready")
	}
	assert.Equal(t, int32(1), refresher.calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestRefreshScheduler_CancelledDuringWarmup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	refresher := &fakeRefresher{}
	scheduler := postcache.NewRefreshScheduler(refresher, postcache.SchedulerOptions{
		WarmupDelay: time.Hour,
		Logger:      discardLogger(),
	})

	require.NoError(t, scheduler.Run(ctx))
	assert.Equal(t, int32(0), refresher.calls.Load())

	select {
	case <-scheduler.Ready():
	default:
		t.Fatal("Ready should be closed when Run stops")
	}
}

func TestRefreshScheduler_CancelledDuringRefresh(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refresher := &fakeRefresher{
		err:  context.Canceled,
		hook: func(int32) { cancel() },
	}
	scheduler := postcache.NewRefreshScheduler(refresher, postcache.SchedulerOptions{
		Delay:  func(context.Context, time.Duration) error { return errors.New("delay should not be called") },
		Logger: discardLogger(),
	})

	require.NoError(t, scheduler.Run(ctx))
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestRefreshScheduler_DelayErrorIsReturned(t *testing.T) {
	errClock := errors.New("clock failure")
	refresher := &fakeRefresher{}
	scheduler := postcache.NewRefreshScheduler(refresher, postcache.SchedulerOptions{
		Delay:  func(context.Context, time.Duration) error { return errClock },
		Logger: discardLogger(),
	})

	err := scheduler.Run(context.Background())
	assert.ErrorIs(t, err, errClock)
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestRefreshScheduler_KeepsCacheLoaded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	data := newFakeData()
	seed(t, data, &postcache.Post{ID: "a", Title: "A", ShortTitle: "a", CreatedDate: day(1)})
	cache := newTestCache(data, false)

	delay := &fakeDelay{cancel: cancel, after: 2}
	scheduler := postcache.NewRefreshScheduler(cache, postcache.SchedulerOptions{
		Delay:  delay.delay,
		Logger: discardLogger(),
	})

	require.NoError(t, scheduler.Run(ctx))

	_, ok := cache.LastRefreshed()
	assert.True(t, ok)
	assert.Equal(t, int32(2), data.loads.Load())
}

func TestSleep(t *testing.T) {
	assert.NoError(t, postcache.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, postcache.Sleep(ctx, time.Hour), context.Canceled)
}
