package jgxx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lnprice/internal/components/chrono"
	"lnprice/internal/components/telemetry"
)

// retrier runs an operation up to a fixed number of attempts with a fixed
// delay in between. There is no backoff and no jitter.
type retrier struct {
	attempts int
	delay    time.Duration
	time     chrono.TimeAPI
	tel      telemetry.API
}

// do returns the number of attempts made and the error of the last one.
// It stops early when ctx is done or the session went away underneath it.
func (r retrier) do(ctx context.Context, id string, fn func(ctx context.Context, attempt int) error) (int, error) {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		r.tel.ReportDebug(id, fmt.Sprintf("attempt %d/%d", attempt, r.attempts))

		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if errors.Is(err, ErrSessionClosed) {
			return attempt, err
		}

		r.tel.ReportWarning(id, fmt.Errorf("attempt %d/%d: %w", attempt, r.attempts, err))
		if attempt == r.attempts {
			return attempt, err
		}
		if sleepErr := r.time.Sleep(ctx, r.delay); sleepErr != nil {
			return attempt, sleepErr
		}
	}
	return r.attempts, err
}
