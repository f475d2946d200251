package types

import "context"

// OperationClass identifies a request-quota class on the durable stores.
//
// The external stores meter reads and writes independently; the quota gate
// consults the matching class before each store operation.
type OperationClass string

// Operation classes metered by the durable stores.
const (
	// ClassRead covers Get operations on both stores.
	ClassRead OperationClass = "read"

	// ClassWrite covers Update, Put and Delete operations on both stores.
	ClassWrite OperationClass = "write"
)

// BudgetProvider reports the remaining request allowance per operation class.
//
// Implementations track the durable stores' request quota for the current
// window. The default provider is a local fixed-window counter; callers may
// supply their own when the store exposes a real budget API.
//
// Implementations must be safe for concurrent use.
type BudgetProvider interface {
	// Remaining returns the number of requests still allowed for the class
	// in the current quota window.
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadline
	//   - class: Operation class to query
	//
	// Returns:
	//   - int64: Remaining request allowance
	//   - error: Query failure; the quota gate treats this as zero budget
	Remaining(ctx context.Context, class OperationClass) (int64, error)

	// Consume records n requests against the class's current window.
	//
	// Called by the store layer after each durable operation so the local
	// view of the quota stays accurate.
	Consume(class OperationClass, n int64)
}
