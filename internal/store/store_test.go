package store

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	pstesting "github.com/RemnantsOfSiren/partysync/testing"
	"github.com/RemnantsOfSiren/partysync/types"
)

func newTestBucket(t *testing.T, name string) jetstream.KeyValue {
	t.Helper()

	_, nc := pstesting.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := EnsureBucket(ctx, js, jetstream.KeyValueConfig{Bucket: name, History: 1}, 3)
	require.NoError(t, err)

	return kv
}

func TestEnsureBucketIdempotent(t *testing.T) {
	_, nc := pstesting.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx := context.Background()
	cfg := jetstream.KeyValueConfig{Bucket: "party-test", History: 1}

	first, err := EnsureBucket(ctx, js, cfg, 3)
	require.NoError(t, err)
	require.NotNil(t, first)

	// A second create of the same bucket opens the existing one.
	second, err := EnsureBucket(ctx, js, cfg, 3)
	require.NoError(t, err)
	require.NotNil(t, second)
}

func TestMembershipUpdateCreatesAndMutates(t *testing.T) {
	kv := newTestBucket(t, "party-members")
	m := NewMembership(kv, nil, nil)
	ctx := context.Background()

	_, found, err := m.Load(ctx, "party-1")
	require.NoError(t, err)
	require.False(t, found)

	// Creation path: transform sees a zero record and populates it.
	rec, err := m.Update(ctx, "party-1", func(rec *types.GroupRecord) {
		rec.Members = append(rec.Members, 100)
		rec.Metadata = types.Metadata{OwnerID: 100, Capacity: 4, CreatedAt: time.Now().UnixMilli()}
	})
	require.NoError(t, err)
	require.Equal(t, []int64{100}, rec.Members)

	// Mutation path: transform sees the stored record.
	rec, err = m.Update(ctx, "party-1", func(rec *types.GroupRecord) {
		rec.Members = append(rec.Members, 200)
	})
	require.NoError(t, err)
	require.Equal(t, []int64{100, 200}, rec.Members)

	loaded, found, err := m.Load(ctx, "party-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []int64{100, 200}, loaded.Members)
	require.EqualValues(t, 100, loaded.Metadata.OwnerID)
	require.Equal(t, 4, loaded.Metadata.Capacity)
}

func TestMembershipDelete(t *testing.T) {
	kv := newTestBucket(t, "party-members")
	m := NewMembership(kv, nil, nil)
	ctx := context.Background()

	_, err := m.Update(ctx, "party-1", func(rec *types.GroupRecord) {
		rec.Members = []int64{1}
	})
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "party-1"))

	_, found, err := m.Load(ctx, "party-1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMembershipTouchUpdatesLastActive(t *testing.T) {
	kv := newTestBucket(t, "party-members")
	m := NewMembership(kv, nil, nil)
	ctx := context.Background()

	_, err := m.Update(ctx, "party-1", func(rec *types.GroupRecord) {
		rec.Members = []int64{1}
		rec.Metadata.LastActiveAt = 1
	})
	require.NoError(t, err)

	require.NoError(t, m.Touch(ctx, "party-1"))

	rec, found, err := m.Load(ctx, "party-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Greater(t, rec.Metadata.LastActiveAt, int64(1))
}

func TestMembershipConsumesBudget(t *testing.T) {
	kv := newTestBucket(t, "party-members")
	budget := &countingBudget{}
	m := NewMembership(kv, budget, nil)
	ctx := context.Background()

	_, err := m.Update(ctx, "party-1", func(rec *types.GroupRecord) {
		rec.Members = []int64{1}
	})
	require.NoError(t, err)

	require.Positive(t, budget.reads, "update must charge the read class for its CAS load")
	require.Positive(t, budget.writes)
}

func TestLookupRoundTrip(t *testing.T) {
	kv := newTestBucket(t, "party-lookup")
	l := NewLookup(kv, nil, nil)
	ctx := context.Background()

	_, found, err := l.Get(ctx, 42)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, l.Put(ctx, 42, "social::party-1"))

	ref, found, err := l.Get(ctx, 42)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "social::party-1", ref)

	require.NoError(t, l.Delete(ctx, 42))

	_, found, err = l.Get(ctx, 42)
	require.NoError(t, err)
	require.False(t, found)
}

// countingBudget records consumption without enforcing limits.
type countingBudget struct {
	reads  int64
	writes int64
}

func (c *countingBudget) Remaining(context.Context, types.OperationClass) (int64, error) {
	return 1 << 30, nil
}

func (c *countingBudget) Consume(class types.OperationClass, n int64) {
	switch class {
	case types.ClassRead:
		c.reads += n
	case types.ClassWrite:
		c.writes += n
	}
}
