// Package metrics provides a Prometheus implementation of the
// types.MetricsCollector interface.
//
// The collector is optional: the hub defaults to a no-op collector, so
// deployments that do not run Prometheus pay nothing.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/RemnantsOfSiren/partysync/types"
)

// Prometheus collects partysync metrics into a Prometheus registerer.
type Prometheus struct {
	batchDrainSize     prometheus.Histogram
	batchDrainDuration prometheus.Histogram
	mutationsTotal     *prometheus.CounterVec
	queueDepth         prometheus.Gauge

	quotaWaitDuration *prometheus.HistogramVec
	quotaDeniedTotal  *prometheus.CounterVec

	storeOperationDuration *prometheus.HistogramVec
	storeOperationsTotal   *prometheus.CounterVec

	partiesActive   prometheus.Gauge
	recoveriesTotal *prometheus.CounterVec
}

// Compile-time assertion that Prometheus implements MetricsCollector.
var _ types.MetricsCollector = (*Prometheus)(nil)

// NewPrometheus creates a collector registered against reg.
//
// Parameters:
//   - reg: Target registerer; nil uses prometheus.DefaultRegisterer
//
// Returns:
//   - *Prometheus: New collector instance
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Prometheus{
		batchDrainSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "partysync_batch_drain_size",
			Help:    "Number of mutation events processed per drain cycle",
			Buckets: prometheus.LinearBuckets(1, 5, 10),
		}),
		batchDrainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "partysync_batch_drain_duration_seconds",
			Help:    "Duration of drain cycles",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		mutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "partysync_mutations_total",
			Help: "Total mutation events processed, by kind and outcome",
		}, []string{"kind", "success"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "partysync_queue_depth",
			Help: "Mutation events still queued after the last drain",
		}),
		quotaWaitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "partysync_quota_wait_duration_seconds",
			Help:    "Time spent waiting for request budget",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"class"}),
		quotaDeniedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "partysync_quota_denied_total",
			Help: "Budget checks that found no remaining allowance",
		}, []string{"class"}),
		storeOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "partysync_store_operation_duration_seconds",
			Help:    "Duration of durable store operations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"operation"}),
		storeOperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "partysync_store_operations_total",
			Help: "Total durable store operations, by operation and outcome",
		}, []string{"operation", "success"}),
		partiesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "partysync_parties_active",
			Help: "Live parties currently held in memory",
		}),
		recoveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "partysync_session_recoveries_total",
			Help: "Resolved session recoveries, by outcome",
		}, []string{"outcome"}),
	}
}

// RecordBatchDrain records one completed drain cycle.
func (p *Prometheus) RecordBatchDrain(size int, duration float64) {
	p.batchDrainSize.Observe(float64(size))
	p.batchDrainDuration.Observe(duration)
}

// RecordMutation records one processed mutation event.
func (p *Prometheus) RecordMutation(kind string, success bool) {
	p.mutationsTotal.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
}

// RecordQueueDepth sets the current queue depth.
func (p *Prometheus) RecordQueueDepth(depth int) {
	p.queueDepth.Set(float64(depth))
}

// RecordQuotaWait records a completed wait for request budget.
func (p *Prometheus) RecordQuotaWait(class string, duration float64) {
	p.quotaWaitDuration.WithLabelValues(class).Observe(duration)
}

// RecordQuotaDenied records an exhausted budget check.
func (p *Prometheus) RecordQuotaDenied(class string) {
	p.quotaDeniedTotal.WithLabelValues(class).Inc()
}

// RecordStoreOperation records one durable store operation.
func (p *Prometheus) RecordStoreOperation(operation string, duration float64, success bool) {
	p.storeOperationDuration.WithLabelValues(operation).Observe(duration)
	p.storeOperationsTotal.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
}

// RecordPartyCount sets the current active party count.
func (p *Prometheus) RecordPartyCount(count int) {
	p.partiesActive.Set(float64(count))
}

// RecordRecovery records a resolved session recovery.
func (p *Prometheus) RecordRecovery(outcome string) {
	p.recoveriesTotal.WithLabelValues(outcome).Inc()
}
