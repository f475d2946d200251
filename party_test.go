package partysync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pstesting "github.com/RemnantsOfSiren/partysync/testing"
)

// newEphemeralRegistry wires a hub with no NATS connection and one ephemeral
// registry. mutate adjusts the test config before registration.
func newEphemeralRegistry(t *testing.T, mutate func(cfg *Config)) (*Hub, *Registry) {
	t.Helper()

	cfg := TestConfig("lobby")
	cfg.Mode = ModeEphemeral
	if mutate != nil {
		mutate(&cfg)
	}

	hub, err := NewHub(context.Background(), nil, WithLogger(pstesting.NewTestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Close(context.Background()) })

	reg, err := hub.Register(context.Background(), cfg)
	require.NoError(t, err)

	return hub, reg
}

func waitFuture(t *testing.T, fut *Future) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	select {
	case <-fut.Done():
		return fut.Err()
	case <-ctx.Done():
		t.Fatal("future did not resolve in time")
		return nil
	}
}

func TestAddRequiresReadySession(t *testing.T) {
	hub, reg := newEphemeralRegistry(t, func(cfg *Config) {
		cfg.ReadyWaitTimeout = 50 * time.Millisecond
	})

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)

	_, err = p.Add(context.Background(), 1)
	require.ErrorIs(t, err, ErrSessionNotReady)

	hub.Sessions().SetReady(1)

	fut, err := p.Add(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))
	require.True(t, p.Has(1))
}

func TestAddWaitsForReadySession(t *testing.T) {
	hub, reg := newEphemeralRegistry(t, nil)

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)

	// Flip the flag while Add is polling.
	go func() {
		time.Sleep(20 * time.Millisecond)
		hub.Sessions().SetReady(1)
	}()

	fut, err := p.Add(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))
}

func TestAddValidation(t *testing.T) {
	hub, reg := newEphemeralRegistry(t, func(cfg *Config) {
		cfg.DefaultCapacity = 2
	})
	for id := int64(1); id <= 3; id++ {
		hub.Sessions().SetReady(id)
	}

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)

	fut, err := p.Add(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	// Duplicate member.
	_, err = p.Add(context.Background(), 1)
	require.ErrorIs(t, err, ErrAlreadyMember)

	fut, err = p.Add(context.Background(), 2)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	// Full party.
	_, err = p.Add(context.Background(), 3)
	require.ErrorIs(t, err, ErrAtCapacity)

	// Member of another party.
	other, err := reg.Create(context.Background(), 3)
	require.NoError(t, err)
	_, err = other.Add(context.Background(), 1)
	require.ErrorIs(t, err, ErrAlreadyInParty)
}

func TestRemoveValidation(t *testing.T) {
	hub, reg := newEphemeralRegistry(t, nil)
	hub.Sessions().SetReady(1)

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)

	_, err = p.Remove(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotMember)

	fut, err := p.Add(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	fut, err = p.Remove(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))
	require.False(t, p.Has(1))
}

func TestSetCapacityValidation(t *testing.T) {
	hub, reg := newEphemeralRegistry(t, func(cfg *Config) {
		cfg.DefaultCapacity = 4
	})
	hub.Sessions().SetReady(1)
	hub.Sessions().SetReady(2)

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)

	for _, id := range []int64{1, 2} {
		fut, err := p.Add(context.Background(), id)
		require.NoError(t, err)
		require.NoError(t, waitFuture(t, fut))
	}

	_, err = p.SetCapacity(context.Background(), -1)
	require.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = p.SetCapacity(context.Background(), 4)
	require.ErrorIs(t, err, ErrCapacityUnchanged)

	// Must exceed the current member count.
	_, err = p.SetCapacity(context.Background(), 2)
	require.ErrorIs(t, err, ErrCapacityTooSmall)

	fut, err := p.SetCapacity(context.Background(), 3)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))
	require.Equal(t, 3, p.Capacity())
}

func TestNotificationOrder(t *testing.T) {
	hub, reg := newEphemeralRegistry(t, nil)
	hub.Sessions().SetReady(1)

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)

	var order []string
	p.OnMemberAdded(func(playerID int64) { order = append(order, "first") })
	unsub := p.OnMemberAdded(func(playerID int64) { order = append(order, "second") })
	p.OnMemberAdded(func(playerID int64) { order = append(order, "third") })

	fut, err := p.Add(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))
	require.Equal(t, []string{"first", "second", "third"}, order)

	// Unsubscribed callbacks stop firing; the rest keep their order.
	unsub()
	order = nil

	fut, err = p.Remove(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	fired := false
	p.OnMemberAdded(func(playerID int64) { fired = true })
	require.False(t, fired)
}

func TestUpdatedNotification(t *testing.T) {
	hub, reg := newEphemeralRegistry(t, nil)
	hub.Sessions().SetReady(1)

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)

	var gotField string
	var gotValue any
	p.OnUpdated(func(field string, value any) {
		gotField = field
		gotValue = value
	})

	fut, err := p.SetCapacity(context.Background(), 4)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	require.Equal(t, "capacity", gotField)
	require.Equal(t, 4, gotValue)
}

func TestDestroyOnLastRemove(t *testing.T) {
	hub, reg := newEphemeralRegistry(t, nil)
	hub.Sessions().SetReady(1)

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)

	var sequence []string
	p.OnMemberRemoved(func(playerID int64) { sequence = append(sequence, "removed") })
	p.OnDestroying(func() { sequence = append(sequence, "destroying") })

	fut, err := p.Add(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	fut, err = p.Remove(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	// The leaving member sees their own removal before teardown.
	require.Equal(t, []string{"removed", "destroying"}, sequence)
	require.True(t, p.Destroyed())

	_, found := reg.Get(p.ID())
	require.False(t, found)

	_, ok := hub.Sessions().PartyID(1)
	require.False(t, ok)

	_, err = p.Add(context.Background(), 1)
	require.ErrorIs(t, err, ErrPartyDestroyed)
	_, err = p.SetCapacity(context.Background(), 4)
	require.ErrorIs(t, err, ErrPartyDestroyed)
}
