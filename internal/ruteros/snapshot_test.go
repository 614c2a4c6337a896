package ruteros

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSnapshots(t *testing.T) *SnapshotStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSnapshotStore(client)
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestSnapshots(t)
	ctx := context.Background()

	ev := Evaluation{
		RuteroID:      42,
		CanComplete:   false,
		TotalCount:    5,
		ResolvedCount: 3,
		PendingCount:  2,
		Warning:       &Warning{Kind: WarningPendingDeliveries, Message: "2 deliveries still unresolved"},
	}
	require.NoError(t, store.Save(ctx, ev))

	got, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, &ev, got)
}

func TestSnapshotMiss(t *testing.T) {
	store := newTestSnapshots(t)

	_, err := store.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrSnapshotMiss)
}

func TestSnapshotInvalidate(t *testing.T) {
	store := newTestSnapshots(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Evaluation{RuteroID: 7, CanComplete: true, TotalCount: 1, ResolvedCount: 1}))
	require.NoError(t, store.Invalidate(ctx, 7))

	_, err := store.Get(ctx, 7)
	assert.ErrorIs(t, err, ErrSnapshotMiss)
}
