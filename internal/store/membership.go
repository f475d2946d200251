package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/RemnantsOfSiren/partysync/internal/metrics"
	"github.com/RemnantsOfSiren/partysync/types"
)

// ErrUpdateConflict is returned when a compare-and-update loop loses the
// race more times than casAttempts allows.
var ErrUpdateConflict = errors.New("too many concurrent record updates")

// casAttempts bounds the compare-and-update retry loop. Conflicts are rare:
// a record is only contended when two processes host members of one party.
const casAttempts = 5

// Membership is the durable store for party group records (store A).
//
// One bucket per durable registry, keyed by party ID, holding JSON-encoded
// GroupRecord values. The bucket TTL expires records after ~30 days without
// activity; any Put refreshes the clock, so Touch keeps live parties from
// expiring.
//
// Every operation reports its usage to the budget provider so the quota
// gate's view of the remaining allowance stays accurate.
type Membership struct {
	kv      jetstream.KeyValue
	budget  types.BudgetProvider
	metrics types.MetricsCollector
}

// NewMembership creates a membership store over the given bucket.
//
// Parameters:
//   - kv: JetStream KV bucket (created with the record TTL)
//   - budget: Budget provider charged per operation (nil to disable)
//   - collector: Metrics collector (nil for nop)
//
// Returns:
//   - *Membership: New store instance
func NewMembership(kv jetstream.KeyValue, budget types.BudgetProvider, collector types.MetricsCollector) *Membership {
	if collector == nil {
		collector = metrics.NewNop()
	}

	return &Membership{kv: kv, budget: budget, metrics: collector}
}

// Load fetches the group record for a party.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - partyID: Party ID (record key)
//
// Returns:
//   - *types.GroupRecord: The decoded record, nil when absent
//   - bool: false when no record exists (expired or never written)
//   - error: Store or decode failure
func (m *Membership) Load(ctx context.Context, partyID string) (*types.GroupRecord, bool, error) {
	start := time.Now()
	m.consume(types.ClassRead)

	entry, err := m.kv.Get(ctx, partyID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			m.metrics.RecordStoreOperation("get", time.Since(start).Seconds(), true)
			return nil, false, nil
		}

		m.metrics.RecordStoreOperation("get", time.Since(start).Seconds(), false)

		return nil, false, fmt.Errorf("failed to load group record %s: %w", partyID, err)
	}

	var rec types.GroupRecord
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		m.metrics.RecordStoreOperation("get", time.Since(start).Seconds(), false)
		return nil, false, fmt.Errorf("failed to decode group record %s: %w", partyID, err)
	}

	m.metrics.RecordStoreOperation("get", time.Since(start).Seconds(), true)

	return &rec, true, nil
}

// Update atomically read-modify-writes the group record for a party.
//
// The transform receives the current record, or a zero record when none
// exists yet (creation path: the caller populates metadata). The write uses
// the entry revision for compare-and-update and retries the whole loop on
// CAS conflicts; it never retries on store failures, which are the caller's
// terminal outcome.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - partyID: Party ID (record key)
//   - transform: Mutation applied to the record before writing
//
// Returns:
//   - *types.GroupRecord: The record as written
//   - error: Store failure or ErrUpdateConflict
func (m *Membership) Update(ctx context.Context, partyID string, transform func(rec *types.GroupRecord)) (*types.GroupRecord, error) {
	start := time.Now()

	for attempt := 0; attempt < casAttempts; attempt++ {
		rec, revision, found, err := m.loadForUpdate(ctx, partyID)
		if err != nil {
			m.metrics.RecordStoreOperation("update", time.Since(start).Seconds(), false)
			return nil, err
		}

		transform(rec)

		data, err := json.Marshal(rec)
		if err != nil {
			m.metrics.RecordStoreOperation("update", time.Since(start).Seconds(), false)
			return nil, fmt.Errorf("failed to encode group record %s: %w", partyID, err)
		}

		m.consume(types.ClassWrite)

		if !found {
			_, err = m.kv.Create(ctx, partyID, data)
			if errors.Is(err, jetstream.ErrKeyExists) {
				continue // lost the creation race, re-read and retry
			}
		} else {
			_, err = m.kv.Update(ctx, partyID, data, revision)
			if isWrongLastRevision(err) {
				continue // revision moved underneath us, re-read and retry
			}
		}

		if err != nil {
			m.metrics.RecordStoreOperation("update", time.Since(start).Seconds(), false)
			return nil, fmt.Errorf("failed to write group record %s: %w", partyID, err)
		}

		m.metrics.RecordStoreOperation("update", time.Since(start).Seconds(), true)

		return rec, nil
	}

	m.metrics.RecordStoreOperation("update", time.Since(start).Seconds(), false)

	return nil, fmt.Errorf("group record %s: %w", partyID, ErrUpdateConflict)
}

// Delete removes the group record for a party.
func (m *Membership) Delete(ctx context.Context, partyID string) error {
	start := time.Now()
	m.consume(types.ClassWrite)

	if err := m.kv.Purge(ctx, partyID); err != nil {
		m.metrics.RecordStoreOperation("delete", time.Since(start).Seconds(), false)
		return fmt.Errorf("failed to delete group record %s: %w", partyID, err)
	}

	m.metrics.RecordStoreOperation("delete", time.Since(start).Seconds(), true)

	return nil
}

// Touch refreshes the record's TTL and last-active timestamp.
//
// Rewrites the current record with LastActiveAt set to now; the rewrite
// restarts the bucket's age-based expiry for the key.
func (m *Membership) Touch(ctx context.Context, partyID string) error {
	start := time.Now()

	_, err := m.Update(ctx, partyID, func(rec *types.GroupRecord) {
		rec.Metadata.LastActiveAt = time.Now().UnixMilli()
	})
	if err != nil {
		m.metrics.RecordStoreOperation("touch", time.Since(start).Seconds(), false)
		return err
	}

	m.metrics.RecordStoreOperation("touch", time.Since(start).Seconds(), true)

	return nil
}

// loadForUpdate reads the record and its revision for a CAS write.
func (m *Membership) loadForUpdate(ctx context.Context, partyID string) (*types.GroupRecord, uint64, bool, error) {
	m.consume(types.ClassRead)

	entry, err := m.kv.Get(ctx, partyID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return &types.GroupRecord{}, 0, false, nil
		}

		return nil, 0, false, fmt.Errorf("failed to load group record %s: %w", partyID, err)
	}

	var rec types.GroupRecord
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, 0, false, fmt.Errorf("failed to decode group record %s: %w", partyID, err)
	}

	return &rec, entry.Revision(), true, nil
}

// consume charges one request against the budget provider, if any.
func (m *Membership) consume(class types.OperationClass) {
	if m.budget != nil {
		m.budget.Consume(class, 1)
	}
}

// isWrongLastRevision reports whether err is a CAS revision conflict.
//
// JetStream surfaces a lost Update race as a "wrong last sequence" API
// error; nats.go maps it to ErrKeyExists for KV operations.
func isWrongLastRevision(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}

	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}

	return false
}
