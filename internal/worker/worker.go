// Package worker fans a slice of items out to a bounded set of goroutines and
// collects one Result per item, in input order.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/shpitdev/conference-outreach-pipeline/internal/core"
)

type FailurePolicy int

const (
	// FailurePolicyPartialOutput records per-item errors in their Result and keeps going.
	FailurePolicyPartialOutput FailurePolicy = iota
	// FailurePolicyFailFast aborts on the first per-item error.
	FailurePolicyFailFast
)

const DefaultWorkers = 5

type Options struct {
	Workers       int
	FailurePolicy FailurePolicy
}

// Result holds the output for one input item.
type Result[In any, Out any] struct {
	Index  int
	Input  In
	Output Out
	Err    error
}

// PanicError is the per-item error for a processor that panicked. Error() stays
// one line; the goroutine stack is kept in Stack for logging.
type PanicError struct {
	Index int
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic processing item %d: %v", e.Index, e.Value)
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	return o
}

// ProcessAll runs the processor over all input items.
func ProcessAll[In any, Out any](
	ctx context.Context,
	items []In,
	processor func(context.Context, In) (Out, error),
	opts Options,
) ([]Result[In, Out], error) {
	return ProcessAllWithCallback(ctx, items, processor, nil, opts)
}

// ProcessAllWithCallback runs the processor over all input items and invokes onResult
// as each item completes. The callback receives completion-order results.
//
// A core.FatalError from any item cancels the rest and is returned with nil results,
// whatever the FailurePolicy. A panic inside processor becomes that item's error.
func ProcessAllWithCallback[In any, Out any](
	ctx context.Context,
	items []In,
	processor func(context.Context, In) (Out, error),
	onResult func(Result[In, Out]) error,
	opts Options,
) ([]Result[In, Out], error) {
	opts = opts.withDefaults()
	out := make([]Result[In, Out], len(items))
	if len(items) == 0 {
		return out, ctx.Err()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		idx int
		in  In
	}

	jobs := make(chan job)
	done := make(chan Result[In, Out], opts.Workers)

	var wg sync.WaitGroup

	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	workerFn := func() {
		defer wg.Done()
		for j := range jobs {
			if runCtx.Err() != nil {
				return
			}
			res := processOne(runCtx, j.idx, j.in, processor)
			select {
			case done <- res:
			case <-runCtx.Done():
				return
			}
			if res.Err != nil && (core.IsFatal(res.Err) || opts.FailurePolicy == FailurePolicyFailFast) {
				fail(res.Err)
				return
			}
		}
	}

	workers := min(opts.Workers, len(items))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go workerFn()
	}

	go func() {
		defer close(jobs)
		for i, item := range items {
			select {
			case jobs <- job{idx: i, in: item}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	for res := range done {
		out[res.Index] = res
		if onResult != nil {
			if err := onResult(res); err != nil {
				fail(err)
			}
		}
	}

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func processOne[In any, Out any](
	ctx context.Context,
	idx int,
	item In,
	processor func(context.Context, In) (Out, error),
) (res Result[In, Out]) {
	res = Result[In, Out]{Index: idx, Input: item}
	defer func() {
		if r := recover(); r != nil {
			res.Err = &PanicError{Index: idx, Value: r, Stack: debug.Stack()}
		}
	}()
	res.Output, res.Err = processor(ctx, item)
	return res
}
