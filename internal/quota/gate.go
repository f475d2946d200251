package quota

import (
	"context"
	"time"

	"github.com/RemnantsOfSiren/partysync/internal/logging"
	"github.com/RemnantsOfSiren/partysync/internal/metrics"
	"github.com/RemnantsOfSiren/partysync/types"
)

// Gate checks the remaining request allowance before budgeted store
// operations and lets callers wait until a batch of a given size can
// proceed.
//
// The gate never assumes optimistically: a failed budget query is treated as
// zero allowance (fail closed) and logged as a warning. Waiting is a
// bounded-interval poll cancellable through the context, not an unbounded
// spin.
type Gate struct {
	budget  types.BudgetProvider
	poll    time.Duration
	logger  types.Logger
	metrics types.MetricsCollector
}

// NewGate creates a quota gate.
//
// Parameters:
//   - budget: Budget provider to consult
//   - poll: Interval between budget polls while waiting
//   - logger: Logger for fail-closed warnings (nil for nop)
//   - collector: Metrics collector (nil for nop)
//
// Returns:
//   - *Gate: New gate instance
func NewGate(budget types.BudgetProvider, poll time.Duration, logger types.Logger, collector types.MetricsCollector) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	if collector == nil {
		collector = metrics.NewNop()
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	return &Gate{
		budget:  budget,
		poll:    poll,
		logger:  logger,
		metrics: collector,
	}
}

// Has reports whether the class has allowance for n requests right now.
//
// A budget query failure is treated as zero allowance and logged.
func (g *Gate) Has(ctx context.Context, class types.OperationClass, n int64) bool {
	remaining, err := g.budget.Remaining(ctx, class)
	if err != nil {
		g.logger.Warn("quota query failed, treating budget as exhausted",
			"class", string(class),
			"error", err,
		)
		g.metrics.RecordQuotaDenied(string(class))

		return false
	}

	if remaining < n {
		g.metrics.RecordQuotaDenied(string(class))
		return false
	}

	return true
}

// Wait blocks until every given class has allowance for n requests, polling
// on the gate's fixed interval.
//
// Parameters:
//   - ctx: Context bounding the wait
//   - n: Number of requests the caller is about to issue per class
//   - classes: Operation classes that must all have budget at once
//
// Returns:
//   - error: Context error if ctx ends before budget is available
func (g *Gate) Wait(ctx context.Context, n int64, classes ...types.OperationClass) error {
	if g.hasAll(ctx, n, classes) {
		return nil
	}

	start := time.Now()
	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if g.hasAll(ctx, n, classes) {
				elapsed := time.Since(start).Seconds()
				for _, class := range classes {
					g.metrics.RecordQuotaWait(string(class), elapsed)
				}

				return nil
			}
		}
	}
}

// hasAll reports whether every class currently has allowance for n requests.
func (g *Gate) hasAll(ctx context.Context, n int64, classes []types.OperationClass) bool {
	for _, class := range classes {
		if !g.Has(ctx, class, n) {
			return false
		}
	}

	return true
}
