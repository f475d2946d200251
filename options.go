package partysync

import "github.com/RemnantsOfSiren/partysync/types"

// Option configures a Hub with optional dependencies.
//
// Options apply at the hub level and are inherited by every registry it
// creates.
type Option func(*hubOptions)

// hubOptions holds optional Hub configuration.
type hubOptions struct {
	logger       types.Logger
	metrics      types.MetricsCollector
	hooks        *types.Hooks
	budget       types.BudgetProvider
	sessions     types.SessionAttributes
	lookupBucket string
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewHub
//
// Example:
//
//	logger := logging.NewSlog(slog.Default())
//	hub, err := partysync.NewHub(ctx, nc, partysync.WithLogger(logger))
func WithLogger(logger types.Logger) Option {
	return func(o *hubOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - collector: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewHub
func WithMetrics(collector types.MetricsCollector) Option {
	return func(o *hubOptions) {
		o.metrics = collector
	}
}

// WithHooks sets registry lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewHub
//
// Example:
//
//	hooks := &partysync.Hooks{
//	    OnPartyDestroyed: func(ctx context.Context, partyID string) error {
//	        return cleanupVoiceChannel(partyID)
//	    },
//	}
//	hub, err := partysync.NewHub(ctx, nc, partysync.WithHooks(hooks))
func WithHooks(hooks *types.Hooks) Option {
	return func(o *hubOptions) {
		o.hooks = hooks
	}
}

// WithBudget sets a custom request-budget provider.
//
// Replaces the default fixed-window provider, for deployments where the
// durable store exposes a real remaining-quota API.
//
// Parameters:
//   - budget: BudgetProvider implementation
//
// Returns:
//   - Option: Functional option for NewHub
func WithBudget(budget types.BudgetProvider) Option {
	return func(o *hubOptions) {
		o.budget = budget
	}
}

// WithSessions sets the session-attribute store.
//
// Defaults to an in-process session.Memory store. Supply an adapter over
// the host application's session layer so ready flags and current-party
// attributes are shared with it.
//
// Parameters:
//   - sessions: SessionAttributes implementation
//
// Returns:
//   - Option: Functional option for NewHub
func WithSessions(sessions types.SessionAttributes) Option {
	return func(o *hubOptions) {
		o.sessions = sessions
	}
}

// WithLookupBucket overrides the player-lookup KV bucket name.
//
// Default: "party-lookup". The bucket is shared by all registries on the
// hub.
//
// Parameters:
//   - bucket: KV bucket name
//
// Returns:
//   - Option: Functional option for NewHub
func WithLookupBucket(bucket string) Option {
	return func(o *hubOptions) {
		o.lookupBucket = bucket
	}
}
