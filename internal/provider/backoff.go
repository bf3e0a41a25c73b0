package provider

import (
	"context"
	"math"
	"time"
)

// BackoffConfig controls exponential backoff between retry attempts.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// sleep waits out the delay for the given attempt, or returns early when
// the context is cancelled.
func (b BackoffConfig) sleep(ctx context.Context, attempt int) error {
	delay := time.Duration(float64(b.InitialInterval) * math.Pow(2, float64(attempt)))
	if b.MaxInterval > 0 && delay > b.MaxInterval {
		delay = b.MaxInterval
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
