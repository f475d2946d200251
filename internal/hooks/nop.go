// Package hooks provides the default no-op lifecycle hooks.
package hooks

import (
	"context"

	"github.com/RemnantsOfSiren/partysync/types"
)

// NewNop creates hooks with no-op callbacks for every lifecycle event.
//
// Used as the default when no custom hooks are provided, so callers never
// branch on a nil Hooks value.
//
// Returns:
//   - *types.Hooks: Hooks with no-op implementations
func NewNop() *types.Hooks {
	return &types.Hooks{
		OnPartyCreated:     func(context.Context, string) error { return nil },
		OnPartyDestroyed:   func(context.Context, string) error { return nil },
		OnMutationFailed:   func(context.Context, types.MutationEvent, error) error { return nil },
		OnSessionRecovered: func(context.Context, int64, string) error { return nil },
	}
}
