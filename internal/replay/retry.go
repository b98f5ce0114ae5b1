package replay

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// withRetry calls fn until it succeeds, doubling the delay after each failure.
func withRetry(ctx context.Context, logger *zap.Logger, what string, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		logger.Warn(what+" failed, retrying", zap.Error(err), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))

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
