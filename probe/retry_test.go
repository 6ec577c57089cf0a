package probe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	clienterrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/probe"
	"github.com/stretchr/testify/require"
)

func TestWithTimeout(t *testing.T) {
	t.Run("returns the result in time", func(t *testing.T) {
		v, err := probe.WithTimeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
			return 42, nil
		})
		require.NoError(t, err)
		require.Equal(t, 42, v)
	})

	t.Run("times out when fn ignores its context", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		start := time.Now()
		_, err := probe.WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
			<-release
			return 1, nil
		})
		require.ErrorIs(t, err, clienterrors.ErrTimeout)
		require.Less(t, time.Since(start), time.Second)
	})

	t.Run("parent cancellation is not a timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := probe.WithTimeout(ctx, time.Second, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("panic becomes an error", func(t *testing.T) {
		_, err := probe.WithTimeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
			panic("boom")
		})
		var pe *probe.PanicError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, "boom", pe.Value)
	})
}

func TestRetry(t *testing.T) {
	errAttempt := errors.New("attempt failed")

	t.Run("stops at first success", func(t *testing.T) {
		calls := 0
		v, err := probe.Retry(context.Background(), 4, time.Millisecond, func(ctx context.Context, attempt int) (string, error) {
			calls++
			if attempt < 3 {
				return "", errAttempt
			}
			return "ok", nil
		})
		require.NoError(t, err)
		require.Equal(t, "ok", v)
		require.Equal(t, 3, calls)
	})

	t.Run("returns the last error after every attempt", func(t *testing.T) {
		var attempts []int
		_, err := probe.Retry(context.Background(), 4, time.Millisecond, func(ctx context.Context, attempt int) (string, error) {
			attempts = append(attempts, attempt)
			return "", errAttempt
		})
		require.ErrorIs(t, err, errAttempt)
		require.Equal(t, []int{1, 2, 3, 4}, attempts)
	})

	t.Run("waits the delay between attempts", func(t *testing.T) {
		start := time.Now()
		_, _ = probe.Retry(context.Background(), 3, 20*time.Millisecond, func(ctx context.Context, attempt int) (int, error) {
			return 0, errAttempt
		})
		require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("at least one attempt", func(t *testing.T) {
		calls := 0
		_, _ = probe.Retry(context.Background(), 0, time.Millisecond, func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, errAttempt
		})
		require.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := probe.Retry(ctx, 5, time.Hour, func(ctx context.Context, attempt int) (int, error) {
			calls++
			cancel()
			return 0, errAttempt
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, calls)
	})
}
