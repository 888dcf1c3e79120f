package inference

import (
	"context"
	"sync/atomic"
)

// DefaultStubResponse classifies everything as Other so a dry run produces no emails.
const DefaultStubResponse = "Category: Other\nCompany Size: Unknown\nReasoning: Dry run without an inference provider"

// Stub returns a fixed reply without any network access.
type Stub struct {
	Response string
	Err      error

	calls atomic.Int64
}

func (s *Stub) Complete(ctx context.Context, _ Request) (string, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	if s.Response == "" {
		return DefaultStubResponse, nil
	}
	return s.Response, nil
}

// Calls reports how many times Complete ran.
func (s *Stub) Calls() int64 { return s.calls.Load() }
