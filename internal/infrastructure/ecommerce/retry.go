package ecommerce

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxBackoffInterval caps a single sleep. Policies in use never get near it.
const maxBackoffInterval = 24 * time.Hour

// BackoffPolicy describes a bounded exponential retry schedule
type BackoffPolicy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// InitialDelay is the sleep after the first failed attempt
	InitialDelay time.Duration
	// Multiplier grows the delay after every sleep (2 doubles it)
	Multiplier float64
}

// StorefrontWritePolicy retries storefront writes on rate limiting: 5 attempts, 2s doubling
func StorefrontWritePolicy() BackoffPolicy {
	return BackoffPolicy{MaxAttempts: 5, InitialDelay: 2 * time.Second, Multiplier: 2}
}

// SupplierDetailPolicy retries supplier detail lookups: 3 attempts, 15s doubling
func SupplierDetailPolicy() BackoffPolicy {
	return BackoffPolicy{MaxAttempts: 3, InitialDelay: 15 * time.Second, Multiplier: 2}
}

// withDefaults fills zero fields so a zero policy means a single attempt
func (p BackoffPolicy) withDefaults() BackoffPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// Delays returns the sleeps the policy performs when every attempt fails
func (p BackoffPolicy) Delays() []time.Duration {
	p = p.withDefaults()
	b := p.backOff()
	b.Reset()
	delays := make([]time.Duration, 0, p.MaxAttempts-1)
	for {
		next := b.NextBackOff()
		if next == backoff.Stop {
			return delays
		}
		delays = append(delays, next)
	}
}

func (p BackoffPolicy) backOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = p.Multiplier
	exp.MaxInterval = maxBackoffInterval
	exp.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1))
}

// retryableError marks an attempt failure that the policy may retry
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt. Unmarked errors stop the retry loop.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked with Retryable
func IsRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

// Retry runs op until it succeeds, returns an unmarked error, or the policy is exhausted.
// On exhaustion the last error is returned with its Retryable mark removed.
// The timer is used for sleeps; nil uses real time.
func Retry(ctx context.Context, policy BackoffPolicy, timer backoff.Timer, op func(attempt int) error, notify backoff.Notify) error {
	policy = policy.withDefaults()

	attempt := 0
	operation := func() error {
		attempt++
		err := op(attempt)
		if err == nil || IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.RetryNotifyWithTimer(operation, backoff.WithContext(policy.backOff(), ctx), notify, timer)
	var r *retryableError
	if errors.As(err, &r) {
		return r.err
	}
	return err
}

// realTimer sleeps on the wall clock; it mirrors the timer backoff uses by default
type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) C() <-chan time.Time {
	return t.timer.C
}

func (t *realTimer) Start(duration time.Duration) {
	if t.timer == nil {
		t.timer = time.NewTimer(duration)
	} else {
		t.timer.Reset(duration)
	}
}

func (t *realTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

// NewTimer returns a wall-clock timer for Retry
func NewTimer() backoff.Timer {
	return &realTimer{}
}

// sleepContext blocks for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
