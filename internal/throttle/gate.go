// Package throttle bounds concurrent calls to the inference service.
package throttle

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxConcurrent = 5
	DefaultDelay         = 500 * time.Millisecond
)

type Options struct {
	// MaxConcurrent is the number of callers allowed inside Do at once.
	MaxConcurrent int
	// Delay is slept after a slot is acquired and before fn runs. Zero disables it.
	Delay time.Duration
	// RateLimitRPS is a global start-rate limit across all callers. Set to <=0 to disable.
	RateLimitRPS float64
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = DefaultMaxConcurrent
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	return o
}

// Gate is shared by the classifier and the email generator so both phases draw
// from the same concurrency budget.
type Gate struct {
	sem     *semaphore.Weighted
	delay   time.Duration
	limiter *rate.Limiter
	max     int
}

func New(opts Options) *Gate {
	opts = opts.withDefaults()
	g := &Gate{
		sem:   semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		delay: opts.Delay,
		max:   opts.MaxConcurrent,
	}
	if opts.RateLimitRPS > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return g
}

// MaxConcurrent reports the slot count.
func (g *Gate) MaxConcurrent() int { return g.max }

// Do runs fn while holding one slot. The slot is released when fn returns,
// including on panic.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	if g.delay > 0 {
		t := time.NewTimer(g.delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return fn(ctx)
}
