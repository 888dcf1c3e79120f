// Package retry runs an operation under a bounded exponential backoff.
//
// The schedule is deterministic (no jitter) so tests can assert exact delays
// through an injected backoff.Timer.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 4 * time.Second
	DefaultMultiplier  = 2.0
	DefaultMaxDelay    = 60 * time.Second
)

// Policy describes how many times an operation runs and how long to sleep in between.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error. Cancellation of the caller's context is never retried.
	Retryable func(error) bool

	// NewTimer builds the timer used for sleeps. Nil uses wall-clock timers.
	NewTimer func() backoff.Timer

	// OnRetry is called before each sleep with the failed attempt number (1-based).
	OnRetry func(err error, attempt int, delay time.Duration)
}

// Default returns 5 attempts starting at 4s, doubling, capped at 60s.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  DefaultMultiplier,
		MaxDelay:    DefaultMaxDelay,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

func (p Policy) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Delays lists the sleeps between attempts, in order. Its length is MaxAttempts-1.
func (p Policy) Delays() []time.Duration {
	p = p.withDefaults()
	b := p.schedule()
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	for i := 1; i < p.MaxAttempts; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

// Do calls op until it succeeds, returns a non-retryable error, or attempts run out.
// The last error is returned unchanged so callers can classify it with errors.Is/As.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	p = p.withDefaults()

	var b backoff.BackOff = backoff.WithMaxRetries(p.schedule(), uint64(p.MaxAttempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return backoff.Permanent(err)
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = func(err error, d time.Duration) {
			p.OnRetry(err, attempt, d)
		}
	}

	var timer backoff.Timer
	if p.NewTimer != nil {
		timer = p.NewTimer()
	}
	return backoff.RetryNotifyWithTimer(operation, b, notify, timer)
}
