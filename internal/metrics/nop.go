// Package metrics provides the no-op MetricsCollector used as the default.
package metrics

import "github.com/RemnantsOfSiren/partysync/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external metrics
// collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordBatchDrain discards the metric.
func (m *NopMetrics) RecordBatchDrain(int, float64) {}

// RecordMutation discards the metric.
func (m *NopMetrics) RecordMutation(string, bool) {}

// RecordQueueDepth discards the metric.
func (m *NopMetrics) RecordQueueDepth(int) {}

// RecordQuotaWait discards the metric.
func (m *NopMetrics) RecordQuotaWait(string, float64) {}

// RecordQuotaDenied discards the metric.
func (m *NopMetrics) RecordQuotaDenied(string) {}

// RecordStoreOperation discards the metric.
func (m *NopMetrics) RecordStoreOperation(string, float64, bool) {}

// RecordPartyCount discards the metric.
func (m *NopMetrics) RecordPartyCount(int) {}

// RecordRecovery discards the metric.
func (m *NopMetrics) RecordRecovery(string) {}
