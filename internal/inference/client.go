// Package inference talks to the hosted language models used for classification.
package inference

import (
	"context"
	"errors"
	"fmt"
)

// ErrRateLimited is wrapped by every client error that the upstream signaled as a
// rate limit (HTTP 429). Callers treat exhaustion of retries on it as fatal.
var ErrRateLimited = errors.New("rate limited")

// Request is one completion call.
type Request struct {
	Model       string
	Prompt      string
	Temperature float32
}

// Client sends a prompt and returns the model's text reply.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to the Client interface.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// StatusError is a non-2xx reply from an HTTP provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports whether err carries the rate-limit signal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func rateLimited(err error) error {
	return fmt.Errorf("%w: %w", ErrRateLimited, err)
}
