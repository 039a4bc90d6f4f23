package runner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const defaultRetryBackoff = 100 * time.Millisecond

// retryPolicy retries storage writes and RPC reads with exponential backoff.
type retryPolicy struct {
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func newRetryPolicy(maxRetries int, backoff time.Duration, logger *zap.Logger) retryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return retryPolicy{maxRetries: maxRetries, backoff: backoff, logger: logger}
}

// do runs fn until it succeeds or the attempts run out. Every failed attempt
// is logged as a warning with fields appended. Context errors end the loop.
func (p retryPolicy) do(ctx context.Context, what string, fn func(context.Context) error, fields ...zap.Field) error {
	delay := p.backoff
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		last := attempt > p.maxRetries || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		p.logger.Warn(what+" failed", append(fields,
			zap.Int("attempt", attempt),
			zap.Bool("giving_up", last),
			zap.Error(err),
		)...)
		if last {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
