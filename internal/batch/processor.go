// Package batch provides the bounded-rate processor that drains the mutation
// queue and applies the registry's reducer to each event.
package batch

import (
	"errors"
	"sync"
	"time"

	"github.com/RemnantsOfSiren/partysync/internal/logging"
	"github.com/RemnantsOfSiren/partysync/internal/metrics"
	"github.com/RemnantsOfSiren/partysync/internal/queue"
	"github.com/RemnantsOfSiren/partysync/types"
)

// Common errors for processor operations.
var (
	ErrNotStarted     = errors.New("processor not started")
	ErrAlreadyStarted = errors.New("processor already started")
	ErrNoReducer      = errors.New("reducer not set")
)

// Reducer applies one drained mutation event and returns its outcome.
//
// A nil return means the mutation was applied (durably where applicable);
// a non-nil return becomes the rejection reason on the caller's future.
type Reducer func(event types.MutationEvent) error

// Config controls the drain cadence of a Processor.
type Config struct {
	// Size is the maximum number of events drained per cycle.
	Size int

	// Delay is the interval between drain cycles.
	Delay time.Duration
}

// Processor owns the drain loop over a mutation queue.
//
// Every Delay interval it drains up to Size items oldest-first and invokes
// the reducer synchronously for each, completing the item's future with the
// reducer's outcome. The loop never runs two drains concurrently, and within
// one drain events are processed strictly in dequeue order; combined with
// FIFO enqueue order this is the per-group serialization guarantee.
type Processor struct {
	q       *queue.Queue
	cfg     Config
	reducer Reducer
	logger  types.Logger
	metrics types.MetricsCollector

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	ticker  *time.Ticker
}

// New creates a batch processor over the given queue.
//
// Parameters:
//   - q: Queue to drain
//   - cfg: Drain cadence (Size defaults to 20, Delay to 30s)
//   - reducer: Persistence reducer applied per event
//
// Returns:
//   - *Processor: New processor instance
func New(q *queue.Queue, cfg Config, reducer Reducer) *Processor {
	if cfg.Size <= 0 {
		cfg.Size = 20
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 30 * time.Second
	}

	return &Processor{
		q:       q,
		cfg:     cfg,
		reducer: reducer,
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// SetLogger sets the logger. Must be called before Start().
func (p *Processor) SetLogger(logger types.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if logger != nil {
		p.logger = logger
	}
}

// SetMetrics sets the metrics collector. Must be called before Start().
func (p *Processor) SetMetrics(collector types.MetricsCollector) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if collector != nil {
		p.metrics = collector
	}
}

// Start begins the drain loop in the background.
//
// Returns:
//   - error: ErrAlreadyStarted if running, ErrNoReducer if reducer is nil
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}

	if p.reducer == nil {
		return ErrNoReducer
	}

	p.started = true
	p.ticker = time.NewTicker(p.cfg.Delay)

	go p.drainLoop()

	return nil
}

// Stop stops the drain loop.
//
// Blocks until the loop goroutine exits; an in-flight drain runs to
// completion first (there is no mid-event cancellation).
//
// Returns:
//   - error: ErrNotStarted if not running
func (p *Processor) Stop() error {
	p.mu.Lock()

	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}

	p.ticker.Stop()
	close(p.stopCh)
	p.started = false

	p.mu.Unlock()

	<-p.doneCh

	return nil
}

// Drain runs one drain cycle immediately.
//
// Used by tests and by shutdown paths that want to flush pending events
// without waiting for the next tick. Safe to call only when the background
// loop is stopped, since drains must never run concurrently.
func (p *Processor) Drain() {
	p.drain()
}

// drainLoop is the background goroutine that drains batches on the cadence.
func (p *Processor) drainLoop() {
	defer close(p.doneCh)

	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ticker.C:
			p.drain()
		}
	}
}

// drain processes up to cfg.Size items in strict dequeue order.
func (p *Processor) drain() {
	start := time.Now()
	processed := 0

	for processed < p.cfg.Size {
		item := p.q.Dequeue()
		if item == nil {
			break
		}

		err := p.reducer(item.Event)
		if err != nil {
			p.logger.Debug("mutation rejected",
				"party_id", item.Event.GroupKey,
				"kind", item.Event.Kind.String(),
				"error", err,
			)
		}

		item.Future.Complete(err)
		p.metrics.RecordMutation(item.Event.Kind.String(), err == nil)
		processed++
	}

	if processed > 0 {
		p.metrics.RecordBatchDrain(processed, time.Since(start).Seconds())
	}

	p.metrics.RecordQueueDepth(p.q.Len())
}

// IsStarted reports whether the drain loop is running.
func (p *Processor) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.started
}
