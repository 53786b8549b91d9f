package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Policy bounds a single logical generation: each attempt gets Timeout, failed attempts
// marked retryable are repeated up to MaxRetries times with doubling backoff.
type Policy struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Timeout:        60 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

type retrying struct {
	next   Generator
	policy Policy
	sleep  func(context.Context, time.Duration) error
}

// WithRetry wraps next with policy.
func WithRetry(next Generator, policy Policy) Generator {
	return &retrying{next: next, policy: policy, sleep: sleepContext}
}

func (r *retrying) Generate(ctx context.Context, req Request) (string, error) {
	backoff := r.policy.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, backoff); err != nil {
				return "", lastErr
			}
			backoff *= 2
			if r.policy.MaxBackoff > 0 && backoff > r.policy.MaxBackoff {
				backoff = r.policy.MaxBackoff
			}
		}

		text, err := r.attempt(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || !r.retryable(ctx, err) {
			return "", err
		}
		zap.S().Warnw("llm attempt failed", "attempt", attempt+1, "max_attempts", r.policy.MaxRetries+1, "error", err)
	}
	return "", lastErr
}

// retryable also accepts an expired attempt deadline as long as the caller's context is live.
func (r *retrying) retryable(ctx context.Context, err error) bool {
	if IsRetryable(err) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
}

func (r *retrying) attempt(ctx context.Context, req Request) (string, error) {
	if r.policy.Timeout <= 0 {
		return r.next.Generate(ctx, req)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
	defer cancel()
	return r.next.Generate(attemptCtx, req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
