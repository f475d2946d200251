package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/RemnantsOfSiren/partysync/internal/metrics"
	"github.com/RemnantsOfSiren/partysync/types"
)

// Lookup is the durable store for player-lookup records (store B).
//
// One bucket shared by all registries, keyed by player ID, holding
// "<registryName>::<partyId>" strings. Used solely to let a returning
// session find which party (and which registry) it belonged to.
type Lookup struct {
	kv      jetstream.KeyValue
	budget  types.BudgetProvider
	metrics types.MetricsCollector
}

// NewLookup creates a lookup store over the given bucket.
func NewLookup(kv jetstream.KeyValue, budget types.BudgetProvider, collector types.MetricsCollector) *Lookup {
	if collector == nil {
		collector = metrics.NewNop()
	}

	return &Lookup{kv: kv, budget: budget, metrics: collector}
}

// Get fetches the lookup record for a player.
//
// Returns:
//   - string: The "<registryName>::<partyId>" value
//   - bool: false when no record exists
//   - error: Store failure
func (l *Lookup) Get(ctx context.Context, playerID int64) (string, bool, error) {
	start := time.Now()
	l.consume(types.ClassRead)

	entry, err := l.kv.Get(ctx, keyForPlayer(playerID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			l.metrics.RecordStoreOperation("get", time.Since(start).Seconds(), true)
			return "", false, nil
		}

		l.metrics.RecordStoreOperation("get", time.Since(start).Seconds(), false)

		return "", false, fmt.Errorf("failed to load lookup record for player %d: %w", playerID, err)
	}

	l.metrics.RecordStoreOperation("get", time.Since(start).Seconds(), true)

	return string(entry.Value()), true, nil
}

// Put upserts the lookup record for a player.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - playerID: Player ID (record key)
//   - ref: Encoded "<registryName>::<partyId>" value
//
// Returns:
//   - error: Store failure
func (l *Lookup) Put(ctx context.Context, playerID int64, ref string) error {
	start := time.Now()
	l.consume(types.ClassWrite)

	if _, err := l.kv.Put(ctx, keyForPlayer(playerID), []byte(ref)); err != nil {
		l.metrics.RecordStoreOperation("update", time.Since(start).Seconds(), false)
		return fmt.Errorf("failed to write lookup record for player %d: %w", playerID, err)
	}

	l.metrics.RecordStoreOperation("update", time.Since(start).Seconds(), true)

	return nil
}

// Delete removes the lookup record for a player.
func (l *Lookup) Delete(ctx context.Context, playerID int64) error {
	start := time.Now()
	l.consume(types.ClassWrite)

	if err := l.kv.Purge(ctx, keyForPlayer(playerID)); err != nil {
		l.metrics.RecordStoreOperation("delete", time.Since(start).Seconds(), false)
		return fmt.Errorf("failed to delete lookup record for player %d: %w", playerID, err)
	}

	l.metrics.RecordStoreOperation("delete", time.Since(start).Seconds(), true)

	return nil
}

// consume charges one request against the budget provider, if any.
func (l *Lookup) consume(class types.OperationClass) {
	if l.budget != nil {
		l.budget.Consume(class, 1)
	}
}

// keyForPlayer converts a player ID to a KV key.
func keyForPlayer(playerID int64) string {
	return strconv.FormatInt(playerID, 10)
}
