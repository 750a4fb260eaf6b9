package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const checkpointKey = "metadata.json"

// Checkpoint marks the end of the last completed harvest. The harvester
// uses it as the lower bound of the next incremental window.
type Checkpoint struct {
	LastRun time.Time `json:"last_run"`
}

// CheckpointStore loads and saves the single run marker
type CheckpointStore struct {
	store  Store
	logger *zap.Logger
}

// NewCheckpointStore creates a checkpoint store over a blob store
func NewCheckpointStore(store Store, log *zap.Logger) *CheckpointStore {
	return &CheckpointStore{store: store, logger: log}
}

// Load returns the last-run marker, or nil when no prior run exists.
// A missing key is a fresh start, not an error.
func (c *CheckpointStore) Load(ctx context.Context) (*Checkpoint, error) {
	data, err := c.store.Get(ctx, checkpointKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.logger.Info("no checkpoint found, starting fresh")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	c.logger.Info("checkpoint loaded", zap.Time("last_run", cp.LastRun))
	return &cp, nil
}

// Save overwrites the marker. Callers invoke this only after the harvest
// the marker bounds has fully completed, so a failed run never advances
// the window.
func (c *CheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := c.store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure bucket: %w", err)
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if _, err := c.store.Put(ctx, checkpointKey, data, "application/json"); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	c.logger.Info("checkpoint saved", zap.Time("last_run", cp.LastRun))
	return nil
}
