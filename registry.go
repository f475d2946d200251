package partysync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/RemnantsOfSiren/partysync/internal/batch"
	"github.com/RemnantsOfSiren/partysync/internal/queue"
	"github.com/RemnantsOfSiren/partysync/types"
)

// Registry owns the parties of one named scope and the machinery that keeps
// them durable: the mutation queue, the batch processor draining it, and the
// persistence strategy for the configured mode.
//
// All mutations flow through the queue and are applied one at a time by the
// processor's reducer, so events touching the same party always resolve in
// the order they were issued.
type Registry struct {
	cfg      Config
	logger   types.Logger
	metrics  types.MetricsCollector
	hooks    *types.Hooks
	sessions types.SessionAttributes

	ctx    context.Context
	cancel context.CancelFunc

	q       *queue.Queue
	proc    *batch.Processor
	persist persister

	parties *xsync.Map[string, *Party]

	closed atomic.Bool
}

// registryDeps carries the hub-owned collaborators into a registry.
type registryDeps struct {
	logger   types.Logger
	metrics  types.MetricsCollector
	hooks    *types.Hooks
	sessions types.SessionAttributes
	persist  persister
}

// newRegistry wires a registry and starts its batch processor.
func newRegistry(parent context.Context, cfg Config, deps registryDeps) (*Registry, error) {
	ctx, cancel := context.WithCancel(parent)

	r := &Registry{
		cfg:      cfg,
		logger:   deps.logger,
		metrics:  deps.metrics,
		hooks:    deps.hooks,
		sessions: deps.sessions,
		ctx:      ctx,
		cancel:   cancel,
		q:        queue.New(),
		persist:  deps.persist,
		parties:  xsync.NewMap[string, *Party](),
	}

	r.proc = batch.New(r.q, batch.Config{
		Size:  cfg.Batch.Size,
		Delay: cfg.Batch.Delay,
	}, r.reduce)
	r.proc.SetLogger(deps.logger)
	r.proc.SetMetrics(deps.metrics)

	if err := r.proc.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start batch processor for registry %s: %w", cfg.Name, err)
	}

	return r, nil
}

// Name returns the registry's unique name.
func (r *Registry) Name() string {
	return r.cfg.Name
}

// Mode returns the registry's persistence mode.
func (r *Registry) Mode() Mode {
	return r.cfg.Mode
}

// Create creates a new empty party owned by the given player.
//
// The party starts with the registry's default capacity and no members; its
// durable record is written when the first member is added. The owner is not
// added automatically.
//
// Parameters:
//   - ctx: Unused today; kept for future durable-creation paths
//   - ownerID: Player recorded as the party's owner
//
// Returns:
//   - *Party: The new party
//   - error: ErrRegistryClosed after Close
func (r *Registry) Create(_ context.Context, ownerID int64) (*Party, error) {
	if r.isClosed() {
		return nil, ErrRegistryClosed
	}

	now := time.Now().UnixMilli()
	p := newParty(r, uuid.NewString(), r.cfg.DefaultCapacity, nil, types.Metadata{
		OwnerID:      ownerID,
		Capacity:     r.cfg.DefaultCapacity,
		CreatedAt:    now,
		LastActiveAt: now,
	})

	r.parties.Store(p.id, p)
	r.metrics.RecordPartyCount(r.parties.Size())

	r.logger.Info("party created",
		"registry", r.cfg.Name,
		"party_id", p.id,
		"owner_id", ownerID,
	)

	r.runHook("party created", func(ctx context.Context) error {
		if r.hooks.OnPartyCreated == nil {
			return nil
		}
		return r.hooks.OnPartyCreated(ctx, p.id)
	})

	return p, nil
}

// Get returns the party with the given ID.
//
// Returns:
//   - *Party: The party
//   - bool: false when no live party has that ID
func (r *Registry) Get(partyID string) (*Party, bool) {
	return r.parties.Load(partyID)
}

// Size returns the number of live parties.
func (r *Registry) Size() int {
	return r.parties.Size()
}

// Flush runs one drain cycle immediately instead of waiting for the next
// tick. Intended for tests and shutdown paths; must not race the background
// loop, so only call it while the processor is stopped.
func (r *Registry) Flush() {
	r.proc.Drain()
}

// close stops the drain loop, flushes whatever is still queued, and cancels
// the registry's background work. Called by the hub.
func (r *Registry) close() {
	if r.closed.Swap(true) {
		return
	}

	if err := r.proc.Stop(); err == nil {
		// One final pass so queued events resolve instead of hanging
		// their futures forever.
		for r.q.Len() > 0 {
			r.proc.Drain()
		}
	}

	r.cancel()

	r.logger.Info("registry closed", "registry", r.cfg.Name)
}

func (r *Registry) isClosed() bool {
	return r.closed.Load()
}

// enqueue creates a mutation event and its future and pushes them onto the
// queue. Callers validate before enqueueing.
func (r *Registry) enqueue(partyID string, kind types.MutationKind, value int64) *types.Future {
	fut := types.NewFuture()
	r.q.Enqueue(&queue.Item{
		Event: types.MutationEvent{
			GroupKey:  partyID,
			Timestamp: time.Now().UnixMilli(),
			Kind:      kind,
			Value:     value,
		},
		Future: fut,
	})

	return fut
}

// waitReady blocks until the player's session is marked ready, polling on
// the configured interval, bounded by the configured wait timeout.
func (r *Registry) waitReady(ctx context.Context, playerID int64) error {
	if r.sessions.Ready(playerID) {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.ReadyWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(r.cfg.ReadyPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return fmt.Errorf("player %d: %w", playerID, ErrSessionNotReady)
		case <-ticker.C:
			if r.sessions.Ready(playerID) {
				return nil
			}
		}
	}
}

// reduce applies one drained mutation event: durable writes first, then the
// in-memory mutation and its notifications. The returned error becomes the
// rejection reason on the event's future.
func (r *Registry) reduce(event types.MutationEvent) error {
	p, ok := r.parties.Load(event.GroupKey)
	if !ok {
		return fmt.Errorf("party %s: %w", event.GroupKey, ErrPartyNotFound)
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.OperationTimeout)
	defer cancel()

	var err error

	switch event.Kind {
	case types.MutationAdd:
		err = r.reduceAdd(ctx, p, event.Value)
	case types.MutationRemove:
		err = r.reduceRemove(ctx, p, event.Value)
	case types.MutationSetCapacity:
		err = r.reduceCapacity(ctx, p, int(event.Value))
	default:
		err = fmt.Errorf("unknown mutation kind %d", event.Kind)
	}

	if err != nil {
		r.runHook("mutation failed", func(ctx context.Context) error {
			if r.hooks.OnMutationFailed == nil {
				return nil
			}
			return r.hooks.OnMutationFailed(ctx, event, err)
		})
	}

	return err
}

// reduceAdd re-validates against current state, persists the join, then
// commits it in memory. Validation at enqueue time is not enough: earlier
// events in the same or a previous batch may have filled the party or moved
// the player elsewhere while this event sat in the queue.
func (r *Registry) reduceAdd(ctx context.Context, p *Party, playerID int64) error {
	if p.Destroyed() {
		return fmt.Errorf("party %s: %w", p.id, ErrPartyDestroyed)
	}
	if p.Size() >= p.Capacity() {
		return fmt.Errorf("party %s: %w", p.id, ErrAtCapacity)
	}
	if p.Has(playerID) {
		return fmt.Errorf("player %d: %w", playerID, ErrAlreadyMember)
	}
	if _, joined := r.sessions.PartyID(playerID); joined {
		return fmt.Errorf("player %d: %w", playerID, ErrAlreadyInParty)
	}

	if err := r.persist.add(ctx, p, playerID); err != nil {
		return err
	}

	p.applyAdd(playerID)
	r.sessions.SetPartyID(playerID, p.id)

	r.logger.Debug("member added",
		"registry", r.cfg.Name,
		"party_id", p.id,
		"player_id", playerID,
		"size", p.Size(),
	)

	return nil
}

// reduceRemove persists the leave, commits it in memory, and tears the party
// down when the last member is gone.
func (r *Registry) reduceRemove(ctx context.Context, p *Party, playerID int64) error {
	if p.Destroyed() {
		return fmt.Errorf("party %s: %w", p.id, ErrPartyDestroyed)
	}
	if !p.Has(playerID) {
		return fmt.Errorf("player %d: %w", playerID, ErrNotMember)
	}

	last := p.Size() == 1

	if err := r.persist.remove(ctx, p, playerID, last); err != nil {
		return err
	}

	remaining := p.applyRemove(playerID)
	r.sessions.ClearPartyID(playerID)

	r.logger.Debug("member removed",
		"registry", r.cfg.Name,
		"party_id", p.id,
		"player_id", playerID,
		"size", remaining,
	)

	if remaining == 0 {
		r.destroyParty(p)
	}

	return nil
}

// reduceCapacity re-validates the bound against current membership, persists
// the new capacity, then commits it in memory.
func (r *Registry) reduceCapacity(ctx context.Context, p *Party, capacity int) error {
	if p.Destroyed() {
		return fmt.Errorf("party %s: %w", p.id, ErrPartyDestroyed)
	}
	if capacity == p.Capacity() {
		return fmt.Errorf("party %s: %w", p.id, ErrCapacityUnchanged)
	}
	if capacity <= p.Size() {
		return fmt.Errorf("party %s: %w", p.id, ErrCapacityTooSmall)
	}

	if err := r.persist.setCapacity(ctx, p, capacity); err != nil {
		return err
	}

	p.applyCapacity(capacity)

	r.logger.Debug("capacity updated",
		"registry", r.cfg.Name,
		"party_id", p.id,
		"capacity", capacity,
	)

	return nil
}

// destroyParty removes the party from the registry, fires its destroying
// notification, and schedules the durable record's removal.
func (r *Registry) destroyParty(p *Party) {
	r.parties.Delete(p.id)
	p.destroy()

	r.persist.scheduleDelete(r.ctx, p.id)

	r.metrics.RecordPartyCount(r.parties.Size())

	r.logger.Info("party destroyed",
		"registry", r.cfg.Name,
		"party_id", p.id,
	)

	r.runHook("party destroyed", func(ctx context.Context) error {
		if r.hooks.OnPartyDestroyed == nil {
			return nil
		}
		return r.hooks.OnPartyDestroyed(ctx, p.id)
	})
}

// adopt reinstates a party from its durable record during session recovery.
//
// Override construction: the record's identity, membership and metadata are
// taken as-is instead of starting empty. When another session already
// recovered the same party, the existing instance wins.
func (r *Registry) adopt(partyID string, rec *types.GroupRecord) *Party {
	capacity := rec.Metadata.Capacity
	if capacity <= 0 {
		capacity = r.cfg.DefaultCapacity
	}

	members := make([]int64, len(rec.Members))
	copy(members, rec.Members)

	p := newParty(r, partyID, capacity, members, rec.Metadata)

	actual, loaded := r.parties.LoadOrStore(partyID, p)
	if loaded {
		return actual
	}

	r.metrics.RecordPartyCount(r.parties.Size())

	r.logger.Info("party recovered",
		"registry", r.cfg.Name,
		"party_id", partyID,
		"size", len(members),
	)

	// Recovered parties get their record clock refreshed so a party that
	// outlives one session does not expire under the next.
	r.persist.scheduleTouch(r.ctx, partyID)

	r.runHook("party created", func(ctx context.Context) error {
		if r.hooks.OnPartyCreated == nil {
			return nil
		}
		return r.hooks.OnPartyCreated(ctx, partyID)
	})

	return p
}

// runHook executes an optional lifecycle hook in the background and logs its
// failure. Hooks never fail registry operations.
func (r *Registry) runHook(name string, fn func(ctx context.Context) error) {
	go func() {
		if err := fn(r.ctx); err != nil {
			r.logger.Warn("hook failed",
				"registry", r.cfg.Name,
				"hook", name,
				"error", err,
			)
		}
	}()
}
