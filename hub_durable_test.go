package partysync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	pstesting "github.com/RemnantsOfSiren/partysync/testing"
	"github.com/RemnantsOfSiren/partysync/types"
)

// newDurableHub wires a hub over an embedded NATS server with one durable
// registry.
func newDurableHub(t *testing.T, mutate func(cfg *Config)) (*Hub, *Registry, *nats.Conn) {
	t.Helper()

	_, nc := pstesting.StartEmbeddedNATS(t)

	hub, err := NewHub(context.Background(), nc, WithLogger(pstesting.NewTestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Close(context.Background()) })

	cfg := TestConfig("lobby")
	if mutate != nil {
		mutate(&cfg)
	}

	reg, err := hub.Register(context.Background(), cfg)
	require.NoError(t, err)

	return hub, reg, nc
}

// stores exposes a durable registry's persistence plumbing for assertions.
func stores(t *testing.T, reg *Registry) *durablePersister {
	t.Helper()

	d, ok := reg.persist.(*durablePersister)
	require.True(t, ok, "registry is not durable")

	return d
}

func TestDurableAddPersistsBothRecords(t *testing.T) {
	hub, reg, _ := newDurableHub(t, nil)
	hub.Sessions().SetReady(1)
	hub.Sessions().SetReady(2)

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)

	for _, id := range []int64{1, 2} {
		fut, err := p.Add(context.Background(), id)
		require.NoError(t, err)
		require.NoError(t, waitFuture(t, fut))
	}

	d := stores(t, reg)

	rec, found, err := d.membership.Load(context.Background(), p.ID())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []int64{1, 2}, rec.Members)
	require.Equal(t, int64(1), rec.Metadata.OwnerID)
	require.Equal(t, reg.cfg.DefaultCapacity, rec.Metadata.Capacity)
	require.NotZero(t, rec.Metadata.LastActiveAt)

	ref, found, err := d.lookup.Get(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, types.FormatLookupRef("lobby", p.ID()), ref)
}

func TestDurableRemoveUpdatesRecord(t *testing.T) {
	hub, reg, _ := newDurableHub(t, nil)
	hub.Sessions().SetReady(1)
	hub.Sessions().SetReady(2)

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)

	for _, id := range []int64{1, 2} {
		fut, err := p.Add(context.Background(), id)
		require.NoError(t, err)
		require.NoError(t, waitFuture(t, fut))
	}

	fut, err := p.Remove(context.Background(), 2)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	d := stores(t, reg)

	rec, found, err := d.membership.Load(context.Background(), p.ID())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []int64{1}, rec.Members)

	_, found, err = d.lookup.Get(context.Background(), 2)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDurableLastRemoveDeletesRecord(t *testing.T) {
	hub, reg, _ := newDurableHub(t, nil)
	hub.Sessions().SetReady(1)

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)
	partyID := p.ID()

	fut, err := p.Add(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	fut, err = p.Remove(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))
	require.True(t, p.Destroyed())

	d := stores(t, reg)

	_, found, err := d.lookup.Get(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, found)

	// The record's removal runs in the background.
	require.Eventually(t, func() bool {
		_, found, err := d.membership.Load(context.Background(), partyID)
		return err == nil && !found
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDurableSetCapacityPersists(t *testing.T) {
	hub, reg, _ := newDurableHub(t, nil)
	hub.Sessions().SetReady(1)

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)

	fut, err := p.Add(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	fut, err = p.SetCapacity(context.Background(), 4)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	d := stores(t, reg)

	rec, found, err := d.membership.Load(context.Background(), p.ID())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 4, rec.Metadata.Capacity)
}

func TestRecoverSessionRestoresParty(t *testing.T) {
	_, nc := pstesting.StartEmbeddedNATS(t)

	// First hub populates durable state.
	hub1, err := NewHub(context.Background(), nc, WithLogger(pstesting.NewTestLogger(t)))
	require.NoError(t, err)

	reg1, err := hub1.Register(context.Background(), TestConfig("lobby"))
	require.NoError(t, err)

	hub1.Sessions().SetReady(1)
	hub1.Sessions().SetReady(2)

	p, err := reg1.Create(context.Background(), 1)
	require.NoError(t, err)
	partyID := p.ID()

	for _, id := range []int64{1, 2} {
		fut, err := p.Add(context.Background(), id)
		require.NoError(t, err)
		require.NoError(t, waitFuture(t, fut))
	}

	require.NoError(t, hub1.Close(context.Background()))

	// Second hub starts cold, like a fresh process.
	hub2, err := NewHub(context.Background(), nc, WithLogger(pstesting.NewTestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub2.Close(context.Background()) })

	reg2, err := hub2.Register(context.Background(), TestConfig("lobby"))
	require.NoError(t, err)
	require.Zero(t, reg2.Size())

	restored, err := hub2.RecoverSession(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, restored)
	require.Equal(t, partyID, restored.ID())
	require.Equal(t, []int64{1, 2}, restored.Members())
	require.Equal(t, int64(1), restored.Metadata().OwnerID)

	require.True(t, hub2.Sessions().Ready(1))
	got, ok := hub2.Sessions().PartyID(1)
	require.True(t, ok)
	require.Equal(t, partyID, got)

	// The second member joins the already-reinstated instance.
	restored2, err := hub2.RecoverSession(context.Background(), 2)
	require.NoError(t, err)
	require.Same(t, restored, restored2)
	require.Equal(t, 1, reg2.Size())
}

func TestRecoverSessionCleansExpiredRecord(t *testing.T) {
	hub, reg, _ := newDurableHub(t, nil)

	// A lookup record pointing at a party whose group record expired.
	d := stores(t, reg)
	ref := types.FormatLookupRef("lobby", uuid.NewString())
	require.NoError(t, d.lookup.Put(context.Background(), 1, ref))

	p, err := hub.RecoverSession(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, p)
	require.True(t, hub.Sessions().Ready(1))

	_, found, err := d.lookup.Get(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, found)
}

func TestRecoverSessionCleansStaleMembership(t *testing.T) {
	hub, reg, _ := newDurableHub(t, nil)
	hub.Sessions().SetReady(1)

	p, err := reg.Create(context.Background(), 1)
	require.NoError(t, err)

	fut, err := p.Add(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	// Player 2 has a lookup record naming the party, but the record's
	// member list disagrees.
	d := stores(t, reg)
	require.NoError(t, d.lookup.Put(context.Background(), 2, types.FormatLookupRef("lobby", p.ID())))

	got, err := hub.RecoverSession(context.Background(), 2)
	require.NoError(t, err)
	require.Nil(t, got)
	require.True(t, hub.Sessions().Ready(2))

	_, found, err := d.lookup.Get(context.Background(), 2)
	require.NoError(t, err)
	require.False(t, found)
}

func TestRecoverSessionUnknownRegistry(t *testing.T) {
	hub, reg, _ := newDurableHub(t, nil)

	d := stores(t, reg)
	require.NoError(t, d.lookup.Put(context.Background(), 1, types.FormatLookupRef("ghost", "some-party")))

	_, err := hub.RecoverSession(context.Background(), 1)
	require.ErrorIs(t, err, ErrRegistryNotFound)
	require.False(t, hub.Sessions().Ready(1))
}

func TestRecoverSessionMalformedRef(t *testing.T) {
	hub, reg, _ := newDurableHub(t, nil)

	d := stores(t, reg)
	require.NoError(t, d.lookup.Put(context.Background(), 1, "not-a-valid-ref"))

	_, err := hub.RecoverSession(context.Background(), 1)
	require.ErrorIs(t, err, ErrMalformedLookupRef)
	require.False(t, hub.Sessions().Ready(1))
}

func TestRecoverSessionEphemeralRegistry(t *testing.T) {
	hub, reg, _ := newDurableHub(t, nil)

	cfg := TestConfig("arena")
	cfg.Mode = ModeEphemeral
	_, err := hub.Register(context.Background(), cfg)
	require.NoError(t, err)

	d := stores(t, reg)
	require.NoError(t, d.lookup.Put(context.Background(), 1, types.FormatLookupRef("arena", "some-party")))

	_, err = hub.RecoverSession(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotDurable)
	require.False(t, hub.Sessions().Ready(1))
}

func TestDurableConcurrentRegistries(t *testing.T) {
	_, nc := pstesting.StartEmbeddedNATS(t)

	hub, err := NewHub(context.Background(), nc, WithLogger(pstesting.NewTestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Close(context.Background()) })

	lobby, err := hub.Register(context.Background(), TestConfig("lobby"))
	require.NoError(t, err)
	arena, err := hub.Register(context.Background(), TestConfig("arena"))
	require.NoError(t, err)

	hub.Sessions().SetReady(1)
	hub.Sessions().SetReady(2)

	p1, err := lobby.Create(context.Background(), 1)
	require.NoError(t, err)
	p2, err := arena.Create(context.Background(), 2)
	require.NoError(t, err)

	fut, err := p1.Add(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	fut, err = p2.Add(context.Background(), 2)
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, fut))

	// The shared lookup bucket namespaces players by registry.
	ref, found, err := stores(t, lobby).lookup.Get(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, types.FormatLookupRef("lobby", p1.ID()), ref)

	ref, found, err = stores(t, arena).lookup.Get(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, types.FormatLookupRef("arena", p2.ID()), ref)
}
