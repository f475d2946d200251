package partysync

import (
	"context"
	"fmt"
	"time"

	"github.com/RemnantsOfSiren/partysync/internal/quota"
	"github.com/RemnantsOfSiren/partysync/internal/store"
	"github.com/RemnantsOfSiren/partysync/types"
)

// persister is the persistence strategy behind a registry's reducer.
//
// The durable implementation writes through to the two KV stores; the
// ephemeral one does nothing, so mutations resolve purely in memory. Keeping
// the mode behind an interface keeps the reducer free of mode conditionals.
type persister interface {
	// add persists a join: lookup record first, then the group record.
	add(ctx context.Context, p *Party, playerID int64) error

	// remove persists a leave: lookup record first, then the group record.
	// When last is true the group record is left for scheduleDelete instead
	// of being rewritten with an empty member list.
	remove(ctx context.Context, p *Party, playerID int64, last bool) error

	// setCapacity persists a capacity change on the group record.
	setCapacity(ctx context.Context, p *Party, capacity int) error

	// scheduleDelete removes the group record in the background, retrying
	// until it succeeds or ctx ends.
	scheduleDelete(ctx context.Context, partyID string)

	// scheduleTouch refreshes the group record's expiry clock in the
	// background, retrying until it succeeds or ctx ends.
	scheduleTouch(ctx context.Context, partyID string)
}

// durablePersister writes party state through to the membership and lookup
// buckets, gated by the request budget.
//
// Write order matters: the lookup record goes first so a crash between the
// two writes leaves a dangling lookup (cleaned up lazily during recovery)
// rather than a member with no way back to their party. The reverse gap, a
// group record naming a player with no lookup record, would strand the
// player instead.
type durablePersister struct {
	name       string
	membership *store.Membership
	lookup     *store.Lookup
	gate       *quota.Gate
	logger     types.Logger
	retry      time.Duration
}

var _ persister = (*durablePersister)(nil)

func newDurablePersister(name string, membership *store.Membership, lookup *store.Lookup, gate *quota.Gate, logger types.Logger, retry time.Duration) *durablePersister {
	return &durablePersister{
		name:       name,
		membership: membership,
		lookup:     lookup,
		gate:       gate,
		logger:     logger,
		retry:      retry,
	}
}

func (d *durablePersister) add(ctx context.Context, p *Party, playerID int64) error {
	if err := d.gate.Wait(ctx, 1, types.ClassRead, types.ClassWrite); err != nil {
		return err
	}

	ref := types.FormatLookupRef(d.name, p.ID())
	if err := d.lookup.Put(ctx, playerID, ref); err != nil {
		return fmt.Errorf("%w: %w", ErrLookupUpdateFailed, err)
	}

	_, meta := p.snapshot()

	_, err := d.membership.Update(ctx, p.ID(), func(rec *types.GroupRecord) {
		if rec.Metadata.CreatedAt == 0 {
			rec.Metadata = meta
		}
		if !rec.HasMember(playerID) {
			rec.Members = append(rec.Members, playerID)
		}
		rec.Metadata.LastActiveAt = time.Now().UnixMilli()
	})
	if err != nil {
		// The lookup record now points at a party whose group record does
		// not list the player. Recovery resolves the drift by deleting the
		// lookup record when the group record disagrees.
		d.logger.Warn("group record update failed after lookup write",
			"registry", d.name,
			"party_id", p.ID(),
			"player_id", playerID,
			"error", err,
		)

		return fmt.Errorf("%w: %w", ErrRecordUpdateFailed, err)
	}

	return nil
}

func (d *durablePersister) remove(ctx context.Context, p *Party, playerID int64, last bool) error {
	if err := d.gate.Wait(ctx, 1, types.ClassRead, types.ClassWrite); err != nil {
		return err
	}

	if err := d.lookup.Delete(ctx, playerID); err != nil {
		return fmt.Errorf("%w: %w", ErrLookupUpdateFailed, err)
	}

	if last {
		// The record's removal is scheduled by the registry once the party
		// is torn down; rewriting it with an empty member list first would
		// spend a write for nothing.
		return nil
	}

	_, err := d.membership.Update(ctx, p.ID(), func(rec *types.GroupRecord) {
		for i, id := range rec.Members {
			if id == playerID {
				rec.Members = append(rec.Members[:i], rec.Members[i+1:]...)
				break
			}
		}
		rec.Metadata.LastActiveAt = time.Now().UnixMilli()
	})
	if err != nil {
		d.logger.Warn("group record update failed after lookup delete",
			"registry", d.name,
			"party_id", p.ID(),
			"player_id", playerID,
			"error", err,
		)

		return fmt.Errorf("%w: %w", ErrRecordUpdateFailed, err)
	}

	return nil
}

func (d *durablePersister) setCapacity(ctx context.Context, p *Party, capacity int) error {
	if err := d.gate.Wait(ctx, 1, types.ClassRead, types.ClassWrite); err != nil {
		return err
	}

	_, err := d.membership.Update(ctx, p.ID(), func(rec *types.GroupRecord) {
		rec.Metadata.Capacity = capacity
		rec.Metadata.LastActiveAt = time.Now().UnixMilli()
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRecordUpdateFailed, err)
	}

	return nil
}

func (d *durablePersister) scheduleDelete(ctx context.Context, partyID string) {
	go d.retryForever(ctx, "delete group record", partyID, func(ctx context.Context) error {
		if err := d.gate.Wait(ctx, 1, types.ClassWrite); err != nil {
			return err
		}

		return d.membership.Delete(ctx, partyID)
	})
}

func (d *durablePersister) scheduleTouch(ctx context.Context, partyID string) {
	go d.retryForever(ctx, "refresh group record", partyID, func(ctx context.Context) error {
		if err := d.gate.Wait(ctx, 1, types.ClassRead, types.ClassWrite); err != nil {
			return err
		}

		return d.membership.Touch(ctx, partyID)
	})
}

// retryForever runs op until it succeeds or ctx ends, waiting the retry
// interval between attempts. Used for background writes that must eventually
// land but must never block the reducer.
func (d *durablePersister) retryForever(ctx context.Context, what, partyID string, op func(ctx context.Context) error) {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return
		}

		if ctx.Err() != nil {
			d.logger.Warn("abandoning background store operation",
				"registry", d.name,
				"operation", what,
				"party_id", partyID,
				"attempts", attempt,
			)

			return
		}

		d.logger.Warn("background store operation failed, retrying",
			"registry", d.name,
			"operation", what,
			"party_id", partyID,
			"attempt", attempt,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.retry):
		}
	}
}

// ephemeralPersister is the no-op strategy for registries whose parties live
// only as long as the process.
type ephemeralPersister struct{}

var _ persister = ephemeralPersister{}

func (ephemeralPersister) add(context.Context, *Party, int64) error { return nil }

func (ephemeralPersister) remove(context.Context, *Party, int64, bool) error { return nil }

func (ephemeralPersister) setCapacity(context.Context, *Party, int) error { return nil }

func (ephemeralPersister) scheduleDelete(context.Context, string) {}

func (ephemeralPersister) scheduleTouch(context.Context, string) {}
