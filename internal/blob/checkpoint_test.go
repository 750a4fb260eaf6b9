package blob

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCheckpointLoadMissingIsFreshStart(t *testing.T) {
	store := NewMemoryStore()
	checkpoints := NewCheckpointStore(store, zaptest.NewLogger(t))

	cp, err := checkpoints.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cp, "missing checkpoint should be a fresh start, not an error")
}

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checkpoints := NewCheckpointStore(store, zaptest.NewLogger(t))

	lastRun := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, checkpoints.Save(ctx, Checkpoint{LastRun: lastRun}))

	cp, err := checkpoints.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.LastRun.Equal(lastRun))
}

func TestCheckpointSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checkpoints := NewCheckpointStore(store, zaptest.NewLogger(t))

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, checkpoints.Save(ctx, Checkpoint{LastRun: first}))
	require.NoError(t, checkpoints.Save(ctx, Checkpoint{LastRun: second}))

	cp, err := checkpoints.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.LastRun.Equal(second))
}
