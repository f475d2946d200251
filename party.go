package partysync

import (
	"context"
	"sync"

	"github.com/RemnantsOfSiren/partysync/types"
)

// MemberFunc receives member-added and member-removed notifications.
type MemberFunc func(playerID int64)

// UpdateFunc receives field-update notifications (currently "capacity").
type UpdateFunc func(field string, value any)

// DestroyFunc receives the one-shot destruction notification.
type DestroyFunc func()

// memberSub pairs a subscription ID with its callback so unsubscribe can
// remove exactly one entry while preserving subscription order.
type memberSub struct {
	id uint64
	fn MemberFunc
}

type updateSub struct {
	id uint64
	fn UpdateFunc
}

type destroySub struct {
	id uint64
	fn DestroyFunc
}

// Party is an in-memory bounded-membership aggregate for a set of
// cooperating player sessions.
//
// Mutation operations (Add, Remove, SetCapacity) validate synchronously
// against local state and, when valid, enqueue a mutation event, returning a
// Future that the registry's batch processor resolves after the durable
// write. The party's fields are only ever mutated inside the registry's
// reducer, never directly by callers, which is what makes the per-party
// ordering guarantee hold.
//
// Notifications fire synchronously, in subscription order, from the reducer
// path. Callbacks must not block.
type Party struct {
	id  string
	reg *Registry

	mu        sync.Mutex
	capacity  int
	members   []int64
	meta      types.Metadata
	destroyed bool

	nextSubID      uint64
	addedSubs      []memberSub
	removedSubs    []memberSub
	updatedSubs    []updateSub
	destroyingSubs []destroySub
}

// newParty creates a party owned by the given registry.
//
// Used both for fresh parties and for recovery "override" construction,
// where id, members and metadata are adopted from the durable record.
func newParty(reg *Registry, id string, capacity int, members []int64, meta types.Metadata) *Party {
	return &Party{
		id:       id,
		reg:      reg,
		capacity: capacity,
		members:  members,
		meta:     meta,
	}
}

// ID returns the party's immutable identifier.
func (p *Party) ID() string {
	return p.id
}

// Capacity returns the current maximum membership.
func (p *Party) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.capacity
}

// Size returns the current membership count.
func (p *Party) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.members)
}

// Members returns a copy of the ordered membership list.
func (p *Party) Members() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int64, len(p.members))
	copy(out, p.members)

	return out
}

// Metadata returns a copy of the party metadata.
func (p *Party) Metadata() types.Metadata {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.meta
}

// Has reports whether the player is currently a member.
func (p *Party) Has(playerID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.hasLocked(playerID)
}

// Add enqueues adding a player to the party.
//
// Validates synchronously: the candidate's session must become ready within
// the configured wait, the party must have a free slot, and the player must
// be neither a current member nor flagged as belonging to some party.
// Validation failures are returned immediately and nothing is enqueued.
//
// Parameters:
//   - ctx: Context bounding the session-ready wait
//   - playerID: Player to add
//
// Returns:
//   - *Future: Resolved by the batch processor with the durable outcome
//   - error: Validation error, or context error from the ready wait
func (p *Party) Add(ctx context.Context, playerID int64) (*types.Future, error) {
	if p.reg.isClosed() {
		return nil, ErrRegistryClosed
	}

	if err := p.reg.waitReady(ctx, playerID); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return nil, ErrPartyDestroyed
	}
	if len(p.members) >= p.capacity {
		return nil, ErrAtCapacity
	}
	if p.hasLocked(playerID) {
		return nil, ErrAlreadyMember
	}
	if _, ok := p.reg.sessions.PartyID(playerID); ok {
		return nil, ErrAlreadyInParty
	}

	return p.reg.enqueue(p.id, types.MutationAdd, playerID), nil
}

// Remove enqueues removing a player from the party.
//
// Fails fast when the player is not currently a member. Removing the last
// member destroys the party once the event drains.
//
// Parameters:
//   - ctx: Unused today; kept for symmetry with Add and future cancellation
//   - playerID: Player to remove
//
// Returns:
//   - *Future: Resolved by the batch processor with the durable outcome
//   - error: Validation error
func (p *Party) Remove(_ context.Context, playerID int64) (*types.Future, error) {
	if p.reg.isClosed() {
		return nil, ErrRegistryClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return nil, ErrPartyDestroyed
	}
	if !p.hasLocked(playerID) {
		return nil, ErrNotMember
	}

	return p.reg.enqueue(p.id, types.MutationRemove, playerID), nil
}

// SetCapacity enqueues changing the party's capacity.
//
// Rejected synchronously when the new capacity is negative, equals the
// current capacity, or does not exceed the current membership count.
//
// Parameters:
//   - ctx: Unused today; kept for symmetry with Add
//   - capacity: New maximum membership
//
// Returns:
//   - *Future: Resolved by the batch processor with the durable outcome
//   - error: Validation error
func (p *Party) SetCapacity(_ context.Context, capacity int) (*types.Future, error) {
	if p.reg.isClosed() {
		return nil, ErrRegistryClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return nil, ErrPartyDestroyed
	}
	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}
	if capacity == p.capacity {
		return nil, ErrCapacityUnchanged
	}
	if capacity <= len(p.members) {
		return nil, ErrCapacityTooSmall
	}

	return p.reg.enqueue(p.id, types.MutationSetCapacity, int64(capacity)), nil
}

// OnMemberAdded subscribes to member-added notifications.
//
// Returns:
//   - func(): Unsubscribe function; safe to call more than once
func (p *Party) OnMemberAdded(fn MemberFunc) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.subIDLocked()
	p.addedSubs = append(p.addedSubs, memberSub{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.addedSubs = removeMemberSub(p.addedSubs, id)
	}
}

// OnMemberRemoved subscribes to member-removed notifications.
//
// Returns:
//   - func(): Unsubscribe function; safe to call more than once
func (p *Party) OnMemberRemoved(fn MemberFunc) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.subIDLocked()
	p.removedSubs = append(p.removedSubs, memberSub{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.removedSubs = removeMemberSub(p.removedSubs, id)
	}
}

// OnUpdated subscribes to field-update notifications.
//
// Fired with ("capacity", newValue) after a successful capacity change.
//
// Returns:
//   - func(): Unsubscribe function; safe to call more than once
func (p *Party) OnUpdated(fn UpdateFunc) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.subIDLocked()
	p.updatedSubs = append(p.updatedSubs, updateSub{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, sub := range p.updatedSubs {
			if sub.id == id {
				p.updatedSubs = append(p.updatedSubs[:i], p.updatedSubs[i+1:]...)
				return
			}
		}
	}
}

// OnDestroying subscribes to the one-shot destruction notification, fired
// immediately before teardown.
//
// Returns:
//   - func(): Unsubscribe function; safe to call more than once
func (p *Party) OnDestroying(fn DestroyFunc) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.subIDLocked()
	p.destroyingSubs = append(p.destroyingSubs, destroySub{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, sub := range p.destroyingSubs {
			if sub.id == id {
				p.destroyingSubs = append(p.destroyingSubs[:i], p.destroyingSubs[i+1:]...)
				return
			}
		}
	}
}

// applyAdd mutates in-memory membership and fires memberAdded.
// Called only from the reducer.
func (p *Party) applyAdd(playerID int64) {
	p.mu.Lock()
	p.members = append(p.members, playerID)
	subs := append([]memberSub(nil), p.addedSubs...)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.fn(playerID)
	}
}

// applyRemove mutates in-memory membership, fires memberRemoved, and
// returns the remaining member count. Called only from the reducer.
func (p *Party) applyRemove(playerID int64) int {
	p.mu.Lock()
	for i, id := range p.members {
		if id == playerID {
			p.members = append(p.members[:i], p.members[i+1:]...)
			break
		}
	}
	remaining := len(p.members)
	subs := append([]memberSub(nil), p.removedSubs...)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.fn(playerID)
	}

	return remaining
}

// applyCapacity mutates in-memory capacity and fires updated.
// Called only from the reducer.
func (p *Party) applyCapacity(capacity int) {
	p.mu.Lock()
	p.capacity = capacity
	p.meta.Capacity = capacity
	subs := append([]updateSub(nil), p.updatedSubs...)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.fn("capacity", capacity)
	}
}

// destroy fires the destruction notification, then disconnects all
// subscribers and clears the entity's fields. Called only from the reducer,
// when membership reaches zero.
func (p *Party) destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	subs := p.destroyingSubs

	p.addedSubs = nil
	p.removedSubs = nil
	p.updatedSubs = nil
	p.destroyingSubs = nil
	p.members = nil
	p.mu.Unlock()

	for _, sub := range subs {
		sub.fn()
	}
}

// Destroyed reports whether the party has been torn down.
func (p *Party) Destroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.destroyed
}

// snapshot returns the current members and metadata for durable writes.
func (p *Party) snapshot() ([]int64, types.Metadata) {
	p.mu.Lock()
	defer p.mu.Unlock()

	members := make([]int64, len(p.members))
	copy(members, p.members)

	return members, p.meta
}

// hasLocked reports membership. Caller must hold p.mu.
func (p *Party) hasLocked(playerID int64) bool {
	for _, id := range p.members {
		if id == playerID {
			return true
		}
	}

	return false
}

// subIDLocked allocates a subscription ID. Caller must hold p.mu.
func (p *Party) subIDLocked() uint64 {
	p.nextSubID++
	return p.nextSubID
}

// removeMemberSub removes the subscription with the given ID.
func removeMemberSub(subs []memberSub, id uint64) []memberSub {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}

	return subs
}
