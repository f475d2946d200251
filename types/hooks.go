package types

import "context"

// Hooks defines callbacks for registry lifecycle events.
//
// All hooks are optional and called asynchronously in background goroutines
// to avoid blocking the batch processor. Hooks receive the registry's
// lifecycle context, which is cancelled during shutdown.
//
// Hook errors are logged but never fail registry operations. Hooks may run
// concurrently and may not complete before Close() returns, so they should
// finish quickly and respect context cancellation.
//
// For per-party member notifications (member added/removed, capacity
// updated, destroying) subscribe on the Party itself; Hooks covers
// registry-wide events only.
type Hooks struct {
	// OnPartyCreated is called when a party is created or recovered.
	OnPartyCreated func(ctx context.Context, partyID string) error

	// OnPartyDestroyed is called after a party's membership reaches zero and
	// the party is torn down.
	OnPartyDestroyed func(ctx context.Context, partyID string) error

	// OnMutationFailed is called when the reducer reports a failed outcome
	// for a drained event.
	OnMutationFailed func(ctx context.Context, event MutationEvent, err error) error

	// OnSessionRecovered is called when session recovery resolves.
	// partyID is empty when no party was restored.
	OnSessionRecovered func(ctx context.Context, playerID int64, partyID string) error
}
