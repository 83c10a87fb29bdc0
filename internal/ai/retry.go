package ai

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	matchErrors "resumatch/internal/errors"
)

// Operation configs carry no health-check setting, so model availability
// probes run on a fixed budget.
const modelCheckTimeout = 10 * time.Second

// withRetry drives fn until it succeeds, the error stops being worth
// retrying, or the attempt budget runs out. retryable decides which
// failures earn another round; the pause between rounds comes from
// backoffDelay.
func withRetry[T any](ctx context.Context, logger *matchErrors.Logger, operation string, maxRetries int, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying AI request",
				"operation", operation, "attempt", attempt,
				"max_retries", maxRetries, "error", lastErr.Error())

			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				logger.Info("AI request succeeded on retry",
					"operation", operation, "attempt", attempt+1)
			}
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			logger.Debug("Error is not retryable",
				"operation", operation, "error", err.Error())
			break
		}
	}

	logger.LogError(lastErr, "AI request exhausted retries",
		"operation", operation, "attempts", maxRetries+1)

	return zero, fmt.Errorf("%s failed after %d attempts: %w", operation, maxRetries+1, lastErr)
}

// backoffDelay returns the pause before retry number attempt: one second
// doubled each round, plus up to ten percent jitter so simultaneous
// clients spread out, never more than thirty seconds.
func backoffDelay(attempt int) time.Duration {
	const ceiling = 30 * time.Second

	base := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	if base <= 0 || base >= ceiling {
		return ceiling
	}

	jitterCeil := big.NewInt(int64(float64(base) * 0.1))
	jitter, _ := rand.Int(rand.Reader, jitterCeil)
	return min(base+time.Duration(jitter.Int64()), ceiling)
}
