package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better
// modularity.
type MetricsCollector interface {
	BatchMetrics
	QuotaMetrics
	StoreMetrics
	RegistryMetrics
}

// BatchMetrics defines metrics for the batch processor.
type BatchMetrics interface {
	// RecordBatchDrain records a completed drain cycle.
	//
	// Parameters:
	//   - size: Number of events drained
	//   - duration: Time taken in seconds
	RecordBatchDrain(size int, duration float64)

	// RecordMutation records the outcome of a single drained event.
	//
	// Parameters:
	//   - kind: Mutation kind ("add", "remove", "set_capacity")
	//   - success: true if the reducer reported success
	RecordMutation(kind string, success bool)

	// RecordQueueDepth sets the current pending-event count (gauge metric).
	RecordQueueDepth(depth int)
}

// QuotaMetrics defines metrics for the quota gate.
type QuotaMetrics interface {
	// RecordQuotaWait records time spent waiting for request budget.
	//
	// Parameters:
	//   - class: Operation class ("read", "write")
	//   - duration: Time spent waiting in seconds
	RecordQuotaWait(class string, duration float64)

	// RecordQuotaDenied records a budget check that reported insufficient
	// allowance (including failed-closed query errors).
	RecordQuotaDenied(class string)
}

// StoreMetrics defines metrics for durable store operations.
type StoreMetrics interface {
	// RecordStoreOperation records a durable KV operation.
	//
	// Parameters:
	//   - operation: Operation type ("get", "update", "delete", "touch")
	//   - duration: Time taken in seconds
	//   - success: true if the operation succeeded
	RecordStoreOperation(operation string, duration float64, success bool)
}

// RegistryMetrics defines metrics for registry-level events.
type RegistryMetrics interface {
	// RecordPartyCount sets the current active party count (gauge metric).
	RecordPartyCount(count int)

	// RecordRecovery records a resolved session recovery.
	//
	// Parameters:
	//   - outcome: "fresh" (no record), "restored", or "expired"
	RecordRecovery(outcome string)
}
