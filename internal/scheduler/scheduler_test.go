package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"rcsync/internal/logger"
)

func TestParse(t *testing.T) {
	_, err := Parse("0 9 * * 1-5")
	require.NoError(t, err)

	_, err = Parse("")
	assert.Error(t, err)
	_, err = Parse("0 0 9 * * 1-5")
	assert.Error(t, err, "seconds field is not accepted")
	_, err = Parse("every day")
	assert.Error(t, err)
}

func TestNext(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	s, err := New("30 6 * * *", loc, nil)
	require.NoError(t, err)

	from := time.Date(2026, 10, 18, 7, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 10, 19, 6, 30, 0, 0, loc), s.Next(from))

	from = time.Date(2026, 10, 18, 6, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 10, 18, 6, 30, 0, 0, loc), s.Next(from))
}

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func TestRunContinuesAfterFailedJob(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s, err := New("* * * * *", time.UTC, logger.FromZap(zap.New(core)))
	require.NoError(t, err)
	s.after = immediate

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	err = s.Run(ctx, func(context.Context) error {
		calls++
		if calls == 3 {
			cancel()
			return nil
		}
		return errors.New("source unavailable")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, logs.FilterMessage("Scheduled run failed").Len())
}

func TestRunStopsWhileWaiting(t *testing.T) {
	s, err := New("0 0 1 1 *", time.UTC, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err = s.Run(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}
