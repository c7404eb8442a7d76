package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackOff(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		notified := 0

		err := retryWithBackOff(context.Background(), backoff.NewConstantBackOff(time.Millisecond), 5, func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, func(error, time.Duration) { notified++ })

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, notified)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		down := errors.New("connection refused")

		err := retryWithBackOff(context.Background(), backoff.NewConstantBackOff(time.Millisecond), 2, func() error {
			calls++
			return down
		}, nil)

		assert.ErrorIs(t, err, down)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := retryWithBackOff(ctx, backoff.NewConstantBackOff(time.Hour), 10, func() error {
			calls++
			return errors.New("connection refused")
		}, nil)

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestObjectKey(t *testing.T) {
	now := time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)

	key := ObjectKey("stu", `..\\..\\essay.pdf`, now)
	assert.Regexp(t, `^stu/2026/03/essay_\d+\.pdf$`, key)

	assert.Regexp(t, `^stu/2026/03/attachment_\d+$`, ObjectKey("stu", "", now))
}
