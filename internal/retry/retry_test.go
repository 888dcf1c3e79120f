package retry_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shpitdev/conference-outreach-pipeline/internal/retry"
)

// recordingTimer fires immediately and remembers every requested sleep.
type recordingTimer struct {
	mu     sync.Mutex
	sleeps []time.Duration
	c      chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (t *recordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.sleeps = append(t.sleeps, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time { return t.c }

func (t *recordingTimer) Sleeps() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.sleeps...)
}

func policyWith(timer *recordingTimer) retry.Policy {
	p := retry.Default()
	p.NewTimer = func() backoff.Timer { return timer }
	return p
}

func TestDelays(t *testing.T) {
	t.Parallel()

	got := retry.Default().Delays()
	want := []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Default().Delays()=%v want=%v", got, want)
	}

	p := retry.Default()
	p.MaxAttempts = 7
	got = p.Delays()
	want = []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Delays()=%v want=%v", got, want)
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	timer := newRecordingTimer()
	var calls int
	err := policyWith(timer).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d want 3", calls)
	}
	want := []time.Duration{4 * time.Second, 8 * time.Second}
	if got := timer.Sleeps(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sleeps=%v want=%v", got, want)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	timer := newRecordingTimer()
	p := policyWith(timer)
	var retries []int
	p.OnRetry = func(_ error, attempt int, _ time.Duration) { retries = append(retries, attempt) }

	sentinel := errors.New("still failing")
	var calls int
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err=%v want %v", err, sentinel)
	}
	if calls != retry.DefaultMaxAttempts {
		t.Fatalf("calls=%d want %d", calls, retry.DefaultMaxAttempts)
	}
	if !reflect.DeepEqual(timer.Sleeps(), retry.Default().Delays()) {
		t.Fatalf("sleeps=%v want=%v", timer.Sleeps(), retry.Default().Delays())
	}
	if !reflect.DeepEqual(retries, []int{1, 2, 3, 4}) {
		t.Fatalf("OnRetry attempts=%v", retries)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()

	timer := newRecordingTimer()
	p := policyWith(timer)
	permanent := errors.New("bad request")
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	var calls int
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("err=%v", err)
	}
	if calls != 1 || len(timer.Sleeps()) != 0 {
		t.Fatalf("calls=%d sleeps=%v", calls, timer.Sleeps())
	}
}

func TestDo_CanceledContextNotRetried(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	timer := newRecordingTimer()
	var calls int
	err := policyWith(timer).Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d want 1", calls)
	}
}

func TestDo_AttemptTimeoutIsRetried(t *testing.T) {
	t.Parallel()

	timer := newRecordingTimer()
	var calls int
	err := policyWith(timer).Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return context.DeadlineExceeded
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}
