// Package retry provides the bounded-retry policy used by the source adapters.
// Backoff grows exponentially up to a cap, and a circuit breaker guards against
// hammering an upstream API that is clearly down.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tigerroll/soundseasons/internal/support/exception"
	"github.com/tigerroll/soundseasons/internal/support/logger"
)

// Policy defines the bounded retry behaviour for a network operation.
// The zero value is unusable; construct via NewPolicy or from configuration.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialInterval is the backoff before the second attempt.
	InitialInterval time.Duration
	// MaxInterval caps the backoff interval. Zero means uncapped.
	MaxInterval time.Duration
	// Factor is the multiplier applied per attempt (e.g. 2.0 for exponential backoff).
	Factor float64
}

// NewPolicy creates a Policy, substituting sane defaults for zero fields.
func NewPolicy(maxAttempts int, initialInterval, maxInterval time.Duration, factor float64) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if initialInterval <= 0 {
		initialInterval = time.Second
	}
	if factor <= 0 {
		factor = 2.0
	}
	return Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: initialInterval,
		MaxInterval:     maxInterval,
		Factor:          factor,
	}
}

// Backoff returns the wait interval before the given attempt.
// attempt starts at 1 for the first retry.
func (p Policy) Backoff(attempt int) time.Duration {
	d := time.Duration(float64(p.InitialInterval) * math.Pow(p.Factor, float64(attempt-1)))
	if p.MaxInterval > 0 && d > p.MaxInterval {
		d = p.MaxInterval
	}
	return d
}

// NewBreaker builds a circuit breaker for a named upstream.
// threshold is the number of consecutive failures that opens the circuit;
// resetInterval is how long the circuit stays open before a probe is allowed.
func NewBreaker(name string, threshold uint32, resetInterval time.Duration) *gobreaker.CircuitBreaker {
	if threshold == 0 {
		threshold = 5
	}
	if resetInterval <= 0 {
		resetInterval = time.Minute
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: resetInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("Circuit breaker '%s' changed state: %s -> %s", name, from, to)
		},
	})
}

// Do executes op under the policy, routing each attempt through the breaker.
// Non-retryable errors (per exception.IsRetryable) abort immediately, as does
// an open circuit or a cancelled context. When all attempts are exhausted the
// last error is returned wrapped in ErrSourceUnavailable.
func Do(ctx context.Context, module string, p Policy, cb *gobreaker.CircuitBreaker, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := cb.Execute(func() (interface{}, error) {
			return nil, op(ctx)
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return exception.New(module, "circuit breaker open",
				errors.Join(exception.ErrSourceUnavailable, err), false)
		}
		if !exception.IsRetryable(err) {
			return err
		}

		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Backoff(attempt)
		logger.Warnf("%s: attempt %d/%d failed (%v). Retrying in %v.", module, attempt, p.MaxAttempts, err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return exception.New(module, "retries exhausted",
		errors.Join(exception.ErrSourceUnavailable, lastErr), false)
}
