package partysync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/RemnantsOfSiren/partysync/internal/hooks"
	"github.com/RemnantsOfSiren/partysync/internal/logging"
	"github.com/RemnantsOfSiren/partysync/internal/metrics"
	"github.com/RemnantsOfSiren/partysync/internal/quota"
	"github.com/RemnantsOfSiren/partysync/internal/store"
	"github.com/RemnantsOfSiren/partysync/session"
	"github.com/RemnantsOfSiren/partysync/types"
)

// Hub is the entry point of the library: it owns the registries, the shared
// player-lookup bucket, the request budget they all draw from, and the
// session recovery flow that reconnects returning players to their parties.
//
// A process typically creates one Hub per NATS connection and registers one
// registry per party scope (for example one per game mode).
type Hub struct {
	nc *nats.Conn
	js jetstream.JetStream

	logger   types.Logger
	metrics  types.MetricsCollector
	hooks    *types.Hooks
	sessions types.SessionAttributes

	lookupBucket string

	ctx    context.Context
	cancel context.CancelFunc

	registries *xsync.Map[string, *Registry]

	// Durable plumbing, created on the first durable registration. The
	// budget is shared across all registries so the hub's view of the
	// remaining platform allowance is a single number.
	mu         sync.Mutex
	closed     bool
	budget     types.BudgetProvider
	gate       *quota.Gate
	lookupKV   jetstream.KeyValue
	lookup     *store.Lookup
	retryEvery time.Duration
}

// NewHub creates a hub over the given NATS connection.
//
// The connection may be nil when every registry will be ephemeral; durable
// registration then fails with ErrJetStreamRequired. The hub never closes
// the connection, the caller owns it.
//
// Parameters:
//   - ctx: Parent context for all background work the hub spawns
//   - nc: NATS connection with JetStream enabled, or nil
//   - opts: Functional options (logger, metrics, hooks, budget, sessions)
//
// Returns:
//   - *Hub: The new hub
//   - error: JetStream initialization failure
//
// Example:
//
//	hub, err := partysync.NewHub(ctx, nc,
//	    partysync.WithLogger(logging.NewSlogDefault()),
//	)
func NewHub(ctx context.Context, nc *nats.Conn, opts ...Option) (*Hub, error) {
	o := &hubOptions{
		lookupBucket: "party-lookup",
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewNop()
	}
	if o.sessions == nil {
		o.sessions = session.NewMemory()
	}
	if o.hooks == nil {
		o.hooks = hooks.NewNop()
	}

	h := &Hub{
		nc:           nc,
		logger:       o.logger,
		metrics:      o.metrics,
		hooks:        o.hooks,
		sessions:     o.sessions,
		lookupBucket: o.lookupBucket,
		registries:   xsync.NewMap[string, *Registry](),
		budget:       o.budget,
	}

	h.ctx, h.cancel = context.WithCancel(ctx)

	if nc != nil {
		js, err := jetstream.New(nc)
		if err != nil {
			h.cancel()
			return nil, fmt.Errorf("failed to create jetstream context: %w", err)
		}
		h.js = js
	}

	return h, nil
}

// Sessions returns the session-attribute store the hub consults.
func (h *Hub) Sessions() types.SessionAttributes {
	return h.sessions
}

// Register creates and starts a registry under the hub.
//
// The config is validated and defaulted first. For durable registries the
// membership bucket is created (or opened) with the configured record TTL,
// and the shared lookup bucket and request budget are set up on first use;
// the first durable registration's Budget section decides the hub-wide
// limits unless WithBudget supplied a provider.
//
// Parameters:
//   - ctx: Context bounding bucket creation
//   - cfg: Registry configuration
//
// Returns:
//   - *Registry: The started registry
//   - error: ErrInvalidConfig, ErrRegistryExists, ErrJetStreamRequired,
//     ErrRegistryClosed after Close, or bucket setup failure
func (h *Hub) Register(ctx context.Context, cfg Config) (*Registry, error) {
	SetDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ValidateWithWarnings(h.logger)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrRegistryClosed
	}

	if _, exists := h.registries.Load(cfg.Name); exists {
		return nil, fmt.Errorf("registry %s: %w", cfg.Name, ErrRegistryExists)
	}

	var persist persister = ephemeralPersister{}

	if cfg.Mode == ModeDurable {
		var err error
		persist, err = h.durablePersisterLocked(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	r, err := newRegistry(h.ctx, cfg, registryDeps{
		logger:   h.logger,
		metrics:  h.metrics,
		hooks:    h.hooks,
		sessions: h.sessions,
		persist:  persist,
	})
	if err != nil {
		return nil, err
	}

	h.registries.Store(cfg.Name, r)

	h.logger.Info("registry registered",
		"registry", cfg.Name,
		"mode", cfg.Mode.String(),
	)

	return r, nil
}

// Registry returns the registry with the given name.
//
// Returns:
//   - *Registry: The registry
//   - bool: false when no registry has that name
func (h *Hub) Registry(name string) (*Registry, bool) {
	return h.registries.Load(name)
}

// RecoverSession reconnects a returning player to their party, if any.
//
// Consults the shared lookup bucket for the player's party reference and,
// when the referenced group record still lists the player, reinstates the
// party in its registry (or joins the already-reinstated instance) and
// restores the player's session attributes. A missing or stale reference
// resolves to no party, deleting the stale lookup record along the way.
//
// The session is marked ready on every resolved outcome, including "no
// party". Store failures are retried without bound, so a platform outage
// delays readiness rather than silently dropping the player's party; cancel
// ctx to give up. The only non-retried failures are structural: a malformed
// reference, or one naming an unknown or ephemeral registry. These need
// operator attention and leave the session not ready.
//
// Parameters:
//   - ctx: Context bounding the whole recovery, including retries
//   - playerID: Player whose session is being initialized
//
// Returns:
//   - *Party: The restored party, nil when the player has none
//   - error: Context error, ErrMalformedLookupRef, ErrRegistryNotFound, or
//     ErrNotDurable
func (h *Hub) RecoverSession(ctx context.Context, playerID int64) (*Party, error) {
	h.mu.Lock()
	lookup := h.lookup
	gate := h.gate
	retryEvery := h.retryEvery
	h.mu.Unlock()

	// No durable registry has ever been registered, so no record can exist.
	if lookup == nil {
		h.finishRecovery(playerID, "", "fresh")
		return nil, nil
	}

	var (
		ref   string
		found bool
	)

	err := h.withRetry(ctx, retryEvery, "load lookup record", playerID, func(ctx context.Context) error {
		if err := gate.Wait(ctx, 1, types.ClassRead); err != nil {
			return err
		}

		var err error
		ref, found, err = lookup.Get(ctx, playerID)

		return err
	})
	if err != nil {
		return nil, err
	}

	if !found {
		h.finishRecovery(playerID, "", "fresh")
		return nil, nil
	}

	registryName, partyID, err := types.ParseLookupRef(ref)
	if err != nil {
		h.logger.Error("malformed lookup record",
			"player_id", playerID,
			"ref", ref,
			"error", err,
		)

		return nil, fmt.Errorf("lookup record for player %d: %w", playerID, err)
	}

	r, ok := h.registries.Load(registryName)
	if !ok {
		return nil, fmt.Errorf("lookup record for player %d names registry %s: %w",
			playerID, registryName, ErrRegistryNotFound)
	}
	if r.cfg.Mode != ModeDurable {
		return nil, fmt.Errorf("lookup record for player %d names registry %s: %w",
			playerID, registryName, ErrNotDurable)
	}

	// Another session on this process may have reinstated the party already.
	if p, live := r.Get(partyID); live {
		if !p.Has(playerID) {
			return h.dropStaleLookup(ctx, lookup, gate, retryEvery, playerID, partyID)
		}

		h.finishRecovery(playerID, partyID, "restored")

		return p, nil
	}

	membership := r.persist.(*durablePersister).membership

	var (
		rec       *types.GroupRecord
		recExists bool
	)

	err = h.withRetry(ctx, retryEvery, "load group record", playerID, func(ctx context.Context) error {
		if err := gate.Wait(ctx, 1, types.ClassRead); err != nil {
			return err
		}

		var err error
		rec, recExists, err = membership.Load(ctx, partyID)

		return err
	})
	if err != nil {
		return nil, err
	}

	if !recExists || !rec.HasMember(playerID) {
		return h.dropStaleLookup(ctx, lookup, gate, retryEvery, playerID, partyID)
	}

	p := r.adopt(partyID, rec)
	h.finishRecovery(playerID, partyID, "restored")

	return p, nil
}

// Close shuts the hub down: every registry stops its drain loop, flushes its
// queue, and cancels its background work, then the hub's own context ends.
//
// Background record deletes and TTL refreshes that have not landed yet are
// abandoned (and logged); the durable records self-expire via the bucket
// TTL, so nothing leaks forever. The NATS connection is left open.
func (h *Hub) Close(_ context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.registries.Range(func(name string, r *Registry) bool {
		r.close()
		h.registries.Delete(name)

		return true
	})

	h.cancel()

	h.logger.Info("hub closed")

	return nil
}

// durablePersisterLocked builds the persistence strategy for a durable
// registry, lazily creating the hub-shared budget, gate and lookup bucket.
// Caller must hold h.mu.
func (h *Hub) durablePersisterLocked(ctx context.Context, cfg Config) (*durablePersister, error) {
	if h.js == nil {
		return nil, fmt.Errorf("registry %s is durable: %w", cfg.Name, ErrJetStreamRequired)
	}

	if h.budget == nil {
		h.budget = quota.NewWindowBudget(cfg.Budget.ReadLimit, cfg.Budget.WriteLimit, cfg.Budget.Window)
	}

	if h.lookupKV == nil {
		kv, err := store.EnsureBucket(ctx, h.js, jetstream.KeyValueConfig{
			Bucket:      h.lookupBucket,
			Description: "partysync player-lookup records",
		}, 3)
		if err != nil {
			return nil, fmt.Errorf("failed to ensure lookup bucket %s: %w", h.lookupBucket, err)
		}

		h.lookupKV = kv
		h.lookup = store.NewLookup(kv, h.budget, h.metrics)
		h.gate = quota.NewGate(h.budget, cfg.QuotaPollInterval, h.logger, h.metrics)
		h.retryEvery = cfg.RetryInterval
	}

	kv, err := store.EnsureBucket(ctx, h.js, jetstream.KeyValueConfig{
		Bucket:      cfg.MembershipBucket,
		Description: fmt.Sprintf("partysync group records for registry %s", cfg.Name),
		TTL:         cfg.RecordTTL,
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure membership bucket %s: %w", cfg.MembershipBucket, err)
	}

	membership := store.NewMembership(kv, h.budget, h.metrics)
	regLookup := store.NewLookup(h.lookupKV, h.budget, h.metrics)
	gate := quota.NewGate(h.budget, cfg.QuotaPollInterval, h.logger, h.metrics)

	return newDurablePersister(cfg.Name, membership, regLookup, gate, h.logger, cfg.RetryInterval), nil
}

// dropStaleLookup deletes a lookup record whose referenced party no longer
// lists the player, then resolves recovery with no party.
func (h *Hub) dropStaleLookup(ctx context.Context, lookup *store.Lookup, gate *quota.Gate, retryEvery time.Duration, playerID int64, partyID string) (*Party, error) {
	h.logger.Info("dropping stale lookup record",
		"player_id", playerID,
		"party_id", partyID,
	)

	if err := h.deleteLookup(ctx, lookup, gate, retryEvery, playerID); err != nil {
		return nil, err
	}

	h.finishRecovery(playerID, "", "expired")

	return nil, nil
}

// deleteLookup removes a player's lookup record, retrying until it lands.
func (h *Hub) deleteLookup(ctx context.Context, lookup *store.Lookup, gate *quota.Gate, retryEvery time.Duration, playerID int64) error {
	return h.withRetry(ctx, retryEvery, "delete lookup record", playerID, func(ctx context.Context) error {
		if err := gate.Wait(ctx, 1, types.ClassWrite); err != nil {
			return err
		}

		return lookup.Delete(ctx, playerID)
	})
}

// finishRecovery marks the session ready and fires the recovery hook.
// partyID is empty when no party was restored; outcome is the recovery
// metric label ("fresh", "restored", "expired").
func (h *Hub) finishRecovery(playerID int64, partyID, outcome string) {
	if partyID != "" {
		h.sessions.SetPartyID(playerID, partyID)
	}
	h.sessions.SetReady(playerID)

	h.metrics.RecordRecovery(outcome)

	if h.hooks.OnSessionRecovered != nil {
		go func() {
			if err := h.hooks.OnSessionRecovered(h.ctx, playerID, partyID); err != nil {
				h.logger.Warn("hook failed",
					"hook", "session recovered",
					"player_id", playerID,
					"error", err,
				)
			}
		}()
	}
}

// withRetry runs op until it succeeds or ctx ends, waiting retryEvery
// between attempts.
func (h *Hub) withRetry(ctx context.Context, retryEvery time.Duration, what string, playerID int64, op func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		h.logger.Warn("recovery store operation failed, retrying",
			"operation", what,
			"player_id", playerID,
			"attempt", attempt,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryEvery):
		}
	}
}
