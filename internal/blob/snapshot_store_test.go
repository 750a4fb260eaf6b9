package blob

import (
	"context"
	"testing"
	"time"

	"github.com/TogetherCrew/farcaster/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSnapshotKeyEmbedsTimestamp(t *testing.T) {
	snapshots := NewSnapshotStore(NewMemoryStore(), "farcaster", zaptest.NewLogger(t))
	key := snapshots.Key(time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC))
	assert.Equal(t, "data_farcaster_2024-02-01-09-30.json", key)
}

func TestReadLatestPicksGreatestTimestamp(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	snapshots := NewSnapshotStore(store, "x", zaptest.NewLogger(t))

	january := snapshot.New("x", "run-jan", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	february := snapshot.New("x", "run-feb", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	// Written out of order on purpose: selection is by embedded timestamp,
	// not write order.
	_, err := snapshots.Write(ctx, february)
	require.NoError(t, err)
	_, err = snapshots.Write(ctx, january)
	require.NoError(t, err)

	latest, err := snapshots.ReadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-feb", latest.RunID)
}

func TestReadLatestIgnoresForeignKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.Put(ctx, "data_x_not-a-timestamp.json", []byte("{}"), "application/json")
	require.NoError(t, err)
	_, err = store.Put(ctx, "metadata.json", []byte("{}"), "application/json")
	require.NoError(t, err)

	snapshots := NewSnapshotStore(store, "x", zaptest.NewLogger(t))
	_, err = snapshots.ReadLatest(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestReadLatestEmptyStore(t *testing.T) {
	snapshots := NewSnapshotStore(NewMemoryStore(), "farcaster", zaptest.NewLogger(t))
	_, err := snapshots.ReadLatest(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
