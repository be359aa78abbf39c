package pipeline

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/classroom-tools/grader-pipeline/config"
)

// RetryPolicy retries transient collaborator failures with exponential
// backoff.  Classification of failures is supplied per call so the policy
// itself stays generic.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter scales a random +/- offset applied to each delay so synchronized
	// workers don't hammer a recovering service in lockstep.
	Jitter float64
}

// NewRetryPolicy builds a RetryPolicy from the environment settings.
func NewRetryPolicy(env *config.Environment) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   env.RetryMaxAttempts,
		InitialDelay:  time.Duration(env.RetryInitialDelayMs) * time.Millisecond,
		MaxDelay:      time.Duration(env.RetryMaxDelayMs) * time.Millisecond,
		BackoffFactor: env.RetryBackoffFactor,
		Jitter:        env.RetryJitter,
	}
}

// Classifier decides whether a failed operation should be retried.
type Classifier func(error) FailureClass

// Run invokes op until it succeeds, fails permanently, or the attempt budget
// runs out.  Exhausting the budget converts the last retryable error into a
// PermanentError.  Backoff waits are cut short by context cancellation.
func (p RetryPolicy) Run(ctx context.Context, op func(context.Context) error, classify Classifier) error {
	if classify == nil {
		classify = ClassifyError
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if classify(err) == Permanent {
			return err
		}
		lastErr = err

		if attempt == p.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay(attempt)):
		}
	}

	return &PermanentError{Attempts: p.MaxAttempts, Err: lastErr}
}

// delay computes the backoff for the given zero-based attempt, capped at
// MaxDelay, with jitter applied.
func (p RetryPolicy) delay(attempt int) time.Duration {
	backoff := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt))
	if backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		backoff += backoff * p.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}
