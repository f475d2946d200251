package types

import (
	"context"
	"sync"
)

// Future is the asynchronous result of an enqueued mutation.
//
// A Future is completed exactly once by the batch processor when the
// originating event is drained: with nil for success, or with an error from
// the validation/persistence taxonomy for failure. All methods are safe for
// concurrent use.
type Future struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewFuture creates an unresolved Future.
//
// Intended for the registry and batch processor; callers receive Futures
// from party operations and only wait on them.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Complete resolves the future with the given outcome (nil = success).
//
// Only the first call has any effect; subsequent calls are ignored.
func (f *Future) Complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Resolved reports whether the future has been completed.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err returns the outcome of a resolved future.
//
// Returns nil both for success and for a future that has not resolved yet;
// use Wait or Done to distinguish.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the future resolves or the context is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//
// Returns:
//   - error: The mutation outcome, or the context error if ctx ends first
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
