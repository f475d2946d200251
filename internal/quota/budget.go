// Package quota tracks the durable stores' request allowance and gates
// store operations on it.
package quota

import (
	"context"
	"sync"
	"time"

	"github.com/RemnantsOfSiren/partysync/types"
)

// WindowBudget is the default BudgetProvider: a fixed-window request counter
// per operation class, mirroring the external stores' quota windows.
//
// The store layer calls Consume after each durable operation; Remaining
// reports the unspent allowance for the window containing the current time.
// Windows are aligned to multiples of the window duration so that all
// counters reset together, the same way the stores' server-side windows do.
type WindowBudget struct {
	window time.Duration

	mu          sync.Mutex
	limits      map[types.OperationClass]int64
	used        map[types.OperationClass]int64
	windowStart time.Time
}

// Compile-time assertion that WindowBudget implements BudgetProvider.
var _ types.BudgetProvider = (*WindowBudget)(nil)

// NewWindowBudget creates a budget provider with per-class request limits.
//
// Parameters:
//   - readLimit: Allowed read requests per window
//   - writeLimit: Allowed write requests per window
//   - window: Quota window duration (typically one minute)
//
// Returns:
//   - *WindowBudget: New budget provider
func NewWindowBudget(readLimit, writeLimit int64, window time.Duration) *WindowBudget {
	if window <= 0 {
		window = time.Minute
	}

	return &WindowBudget{
		window: window,
		limits: map[types.OperationClass]int64{
			types.ClassRead:  readLimit,
			types.ClassWrite: writeLimit,
		},
		used:        make(map[types.OperationClass]int64),
		windowStart: time.Now().Truncate(window),
	}
}

// Remaining returns the unspent allowance for the class in the current window.
func (b *WindowBudget) Remaining(_ context.Context, class types.OperationClass) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.roll(time.Now())

	remaining := b.limits[class] - b.used[class]
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// Consume records n requests against the class's current window.
func (b *WindowBudget) Consume(class types.OperationClass, n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.roll(time.Now())
	b.used[class] += n
}

// roll resets the counters when the current time has left the window.
// Caller must hold b.mu.
func (b *WindowBudget) roll(now time.Time) {
	if now.Sub(b.windowStart) < b.window {
		return
	}

	b.windowStart = now.Truncate(b.window)
	clear(b.used)
}
