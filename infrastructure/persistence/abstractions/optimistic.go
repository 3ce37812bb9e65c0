package abstractions

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"librefind/pkg/errors"
)

// RetryConfig defines how an optimistic transaction retries after losing a
// commit race.
type RetryConfig struct {
	MaxAttempts   int           // Attempts including the first one
	BaseDelay     time.Duration // Delay before the second attempt
	MaxDelay      time.Duration // Upper bound for any single delay
	BackoffFactor float64       // Exponential backoff multiplier
	JitterFactor  float64       // Fraction of the delay randomised either way
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   5,
		BaseDelay:     20 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.5,
	}
}

// Attempt is one execution of a transaction body plus its commit. n starts
// at 1.
type Attempt func(ctx context.Context, n int) error

// RunOptimistic runs attempt until it succeeds, fails with anything other
// than a transaction conflict, or uses up cfg.MaxAttempts. Exhaustion is
// reported as CONFLICT with code TRANSACTION_ABORTED wrapping the last
// conflict.
func RunOptimistic(ctx context.Context, cfg RetryConfig, attempt Attempt) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for n := 1; n <= cfg.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := attempt(ctx, n)
		if err == nil {
			return nil
		}
		if !errors.IsTransactionConflict(err) {
			return err
		}
		lastErr = err

		if n == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(cfg.calculateDelay(n - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return errors.NewConflictError(fmt.Sprintf("transaction aborted after %d attempts", cfg.MaxAttempts)).
		WithCode(errors.CodeTransactionAborted).
		WithCause(lastErr)
}

// calculateDelay calculates the delay for the given retry number
func (c RetryConfig) calculateDelay(retry int) time.Duration {
	backoff := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(retry))

	// Jitter keeps colliding writers from retrying in lockstep.
	jitter := backoff * c.JitterFactor * (rand.Float64() - 0.5) * 2
	delay := time.Duration(backoff + jitter)

	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// ReadSet records the version of every document read during an attempt.
// Each store picks its own version for a document that did not exist.
type ReadSet map[string]int64

// Record notes the version a document had when it was read. The first read
// of a key wins.
func (r ReadSet) Record(key string, version int64) {
	if _, seen := r[key]; !seen {
		r[key] = version
	}
}
