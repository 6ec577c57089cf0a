package probe

import (
	"context"
	"fmt"
	"time"

	clienterrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// PanicError is returned by WithTimeout when fn panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

type outcome[T any] struct {
	value T
	err   error
}

// WithTimeout runs fn with a context limited to d. The call returns once d has
// elapsed whether or not fn honours its context; fn keeps running in the
// background and its late result is discarded.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attemptCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: &PanicError{Value: r}}
			}
		}()
		v, err := fn(attemptCtx)
		done <- outcome[T]{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, clienterrors.Wrapf(clienterrors.ErrTimeout, "[WithTimeout] no reply within %s", d)
	}
}

// Retry calls fn up to attempts times, sleeping delay between failures. It
// returns the first success or the last error.
func Retry[T any](ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var (
		value T
		err   error
	)
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		value, err = fn(ctx, attempt)
		if err == nil {
			return value, nil
		}
		if attempt == attempts {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return value, ctx.Err()
		}
	}
	return value, err
}
