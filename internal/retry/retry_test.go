package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastConfig(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastConfig(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("backend unreachable")
	err := Do(context.Background(), "op", fastConfig(), func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	inner := errors.New("invalid request")
	err := Do(context.Background(), "op", fastConfig(), func(ctx context.Context) error {
		calls++
		return Permanent(inner)
	})
	require.ErrorIs(t, err, inner)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentCategoryStopsEarly(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastConfig(), func(ctx context.Context) error {
		calls++
		return errors.New("401 unauthorized: bad api key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, "op", fastConfig(), func(ctx context.Context) error {
		return errors.New("should not matter")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	cfg := Config{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, Multiplier: 2}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, "op", cfg, func(ctx context.Context) error {
			return errors.New("transient")
		})
	}()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not honor cancellation during backoff")
	}
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		err  error
		want Category
	}{
		{errors.New("429 too many requests"), CategoryRateLimit},
		{errors.New("quota exceeded for project"), CategoryRateLimit},
		{errors.New("401 unauthorized"), CategoryPermanent},
		{errors.New("API error (400): bad request"), CategoryPermanent},
		{errors.New("connection refused"), CategoryTransient},
		{nil, CategoryTransient},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Categorize(tc.err), "error: %v", tc.err)
	}
}
