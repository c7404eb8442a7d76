package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retrierFunc func(ctx context.Context, limit int) (int, error)

func (f retrierFunc) RetryFailed(ctx context.Context, limit int) (int, error) {
	return f(ctx, limit)
}

func TestFailedSweeperCallsRetrierPeriodically(t *testing.T) {
	var calls atomic.Int32
	var gotLimit atomic.Int32

	retrier := retrierFunc(func(_ context.Context, limit int) (int, error) {
		gotLimit.Store(int32(limit))
		if calls.Add(1) == 2 {
			return 0, errors.New("transient")
		}
		return 1, nil
	})

	s := NewFailedSweeper(retrier, 5*time.Millisecond, 7, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.Equal(t, int32(7), gotLimit.Load())
}

func TestFailedSweeperDisabled(t *testing.T) {
	retrier := retrierFunc(func(context.Context, int) (int, error) {
		t.Fatal("retrier must not be called")
		return 0, nil
	})

	done := make(chan struct{})
	go func() {
		NewFailedSweeper(retrier, 0, 10, zerolog.Nop()).Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper should return immediately")
	}
}
