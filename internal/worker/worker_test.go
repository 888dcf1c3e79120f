package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shpitdev/conference-outreach-pipeline/internal/core"
	"github.com/shpitdev/conference-outreach-pipeline/internal/worker"
)

func TestProcessAll_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	items := []int{5, 1, 4, 2, 3}
	fn := func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	}

	out, err := worker.ProcessAll(context.Background(), items, fn, worker.Options{Workers: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(items) {
		t.Fatalf("expected %d outputs, got %d", len(items), len(out))
	}
	for i, res := range out {
		if res.Index != i || res.Input != items[i] || res.Output != items[i]*10 {
			t.Fatalf("unexpected out[%d]: %#v", i, res)
		}
	}
}

func TestProcessAll_EmptyInput(t *testing.T) {
	t.Parallel()

	called := false
	out, err := worker.ProcessAll(context.Background(), nil, func(context.Context, string) (string, error) {
		called = true
		return "", nil
	}, worker.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil || len(out) != 0 || called {
		t.Fatalf("expected empty non-nil output and no calls, got %#v called=%v", out, called)
	}
}

func TestProcessAll_BoundsWorkers(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	fn := func(_ context.Context, _ int) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return 0, nil
	}

	items := make([]int, 30)
	if _, err := worker.ProcessAll(context.Background(), items, fn, worker.Options{Workers: 4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() > 4 {
		t.Fatalf("peak concurrency %d exceeds 4", peak.Load())
	}
}

func TestProcessAll_FailFastStops(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0

	fn := func(_ context.Context, name string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()

		if name == "bad" {
			return "", errors.New("boom")
		}
		t.Fatalf("unexpected call for %q", name)
		return "", nil
	}

	out, err := worker.ProcessAll(context.Background(), []string{"bad", "good"}, fn, worker.Options{
		Workers:       1,
		FailurePolicy: worker.FailurePolicyFailFast,
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom error, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil output on fail-fast, got %#v", out)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestProcessAll_PartialOutputContinues(t *testing.T) {
	t.Parallel()

	fn := func(_ context.Context, name string) (string, error) {
		if name == "bad" {
			return "", errors.New("boom")
		}
		return "ok", nil
	}

	out, err := worker.ProcessAll(context.Background(), []string{"bad", "good"}, fn, worker.Options{
		Workers:       1,
		FailurePolicy: worker.FailurePolicyPartialOutput,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(out))
	}
	if out[0].Err == nil || out[0].Err.Error() != "boom" {
		t.Fatalf("unexpected out[0]: %#v", out[0])
	}
	if out[1].Err != nil || out[1].Output != "ok" {
		t.Fatalf("unexpected out[1]: %#v", out[1])
	}
}

func TestProcessAll_FatalAbortsUnderPartialPolicy(t *testing.T) {
	t.Parallel()

	fatal := core.Fatal(errors.New("rate limited"))
	var started atomic.Int32
	fn := func(ctx context.Context, name string) (string, error) {
		started.Add(1)
		if name == "fatal" {
			return "", fatal
		}
		<-ctx.Done()
		return "", ctx.Err()
	}

	items := []string{"slow-1", "fatal", "slow-2"}
	out, err := worker.ProcessAll(context.Background(), items, fn, worker.Options{
		Workers:       3,
		FailurePolicy: worker.FailurePolicyPartialOutput,
	})
	if !core.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil output on fatal abort, got %#v", out)
	}
}

func TestProcessAll_RecoversPanic(t *testing.T) {
	t.Parallel()

	fn := func(_ context.Context, name string) (string, error) {
		if name == "explode" {
			panic("kaboom")
		}
		return name, nil
	}

	out, err := worker.ProcessAll(context.Background(), []string{"explode", "fine"}, fn, worker.Options{Workers: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Err == nil || out[0].Err.Error() != "panic processing item 0: kaboom" {
		t.Fatalf("expected one-line panic error, got %#v", out[0])
	}
	var pe *worker.PanicError
	if !errors.As(out[0].Err, &pe) || len(pe.Stack) == 0 || pe.Value != "kaboom" {
		t.Fatalf("expected PanicError with stack, got %#v", out[0].Err)
	}
	if out[1].Err != nil || out[1].Output != "fine" {
		t.Fatalf("unexpected out[1]: %#v", out[1])
	}
}

func TestProcessAll_ParentCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := worker.ProcessAll(ctx, []string{"a", "b"}, func(context.Context, string) (string, error) {
		return "x", nil
	}, worker.Options{Workers: 1})
	if !errors.Is(err, context.Canceled) || out != nil {
		t.Fatalf("expected canceled error and nil output, got %v %#v", err, out)
	}
}

func TestProcessAllWithCallback_CompletesInCompletionOrder(t *testing.T) {
	t.Parallel()

	releaseSlow := make(chan struct{})
	startedSlow := make(chan struct{})
	var firstCallbackInput atomic.Value
	firstCallbackInput.Store("")

	fn := func(_ context.Context, name string) (string, error) {
		if name == "slow" {
			close(startedSlow)
			<-releaseSlow
		}
		return name, nil
	}

	var mu sync.Mutex
	var seen []string
	doneErr := make(chan error, 1)
	go func() {
		_, err := worker.ProcessAllWithCallback(
			context.Background(),
			[]string{"slow", "fast"},
			fn,
			func(res worker.Result[string, string]) error {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, res.Input)
				if len(seen) == 1 {
					firstCallbackInput.Store(res.Input)
				}
				return nil
			},
			worker.Options{Workers: 2},
		)
		doneErr <- err
	}()

	select {
	case <-startedSlow:
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for slow task to start")
	}

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		if firstCallbackInput.Load().(string) == "fast" {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(releaseSlow)

	if err := <-doneErr; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := firstCallbackInput.Load().(string); got != "fast" {
		t.Fatalf("expected fast item to complete first, got %q", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected 2 callbacks, got %v", seen)
	}
}

func TestProcessAllWithCallback_CallbackErrorAborts(t *testing.T) {
	t.Parallel()

	stop := errors.New("stop")
	_, err := worker.ProcessAllWithCallback(
		context.Background(),
		[]string{"a", "b", "c"},
		func(_ context.Context, s string) (string, error) { return s, nil },
		func(worker.Result[string, string]) error { return stop },
		worker.Options{Workers: 1},
	)
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
}
