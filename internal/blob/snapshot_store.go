package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TogetherCrew/farcaster/internal/snapshot"
	"go.uber.org/zap"
)

// ErrNoSnapshot is returned by ReadLatest when no snapshot key exists.
var ErrNoSnapshot = errors.New("blob: no snapshot available")

// snapshotTimeLayout is the timestamp token embedded in snapshot keys.
// It sorts lexically, but ReadLatest compares parsed times rather than
// relying on key ordering.
const snapshotTimeLayout = "2006-01-02-15-04"

// SnapshotStore writes and reads whole-run snapshots as single blobs,
// keyed as data_<source>_<timestamp>.json.
type SnapshotStore struct {
	store  Store
	source string
	logger *zap.Logger
}

// NewSnapshotStore creates a snapshot store for one source
func NewSnapshotStore(store Store, source string, log *zap.Logger) *SnapshotStore {
	return &SnapshotStore{store: store, source: source, logger: log}
}

// Key returns the blob key for a run that started at t.
func (s *SnapshotStore) Key(t time.Time) string {
	return fmt.Sprintf("data_%s_%s.json", s.source, t.UTC().Format(snapshotTimeLayout))
}

// Write persists one immutable run snapshot and returns its key.
func (s *SnapshotStore) Write(ctx context.Context, snap *snapshot.Snapshot) (string, error) {
	if err := s.store.EnsureBucket(ctx); err != nil {
		return "", fmt.Errorf("failed to ensure bucket: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := s.Key(snap.StartedAt)
	if _, err := s.store.Put(ctx, key, data, "application/json"); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	s.logger.Info("snapshot written", zap.String("key", key), zap.Int("bytes", len(data)))
	return key, nil
}

// ReadLatest returns the snapshot whose embedded timestamp is greatest,
// or ErrNoSnapshot when none match the key pattern.
func (s *SnapshotStore) ReadLatest(ctx context.Context) (*snapshot.Snapshot, error) {
	prefix := fmt.Sprintf("data_%s_", s.source)
	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var latestKey string
	var latest time.Time
	for _, key := range keys {
		ts, ok := s.keyTime(key)
		if !ok {
			continue
		}
		if latestKey == "" || ts.After(latest) {
			latestKey = key
			latest = ts
		}
	}
	if latestKey == "" {
		return nil, ErrNoSnapshot
	}

	data, err := s.store.Get(ctx, latestKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", latestKey, err)
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", latestKey, err)
	}

	s.logger.Info("snapshot loaded", zap.String("key", latestKey), zap.Time("harvested_at", latest))
	return &snap, nil
}

// keyTime extracts the embedded timestamp from a snapshot key.
func (s *SnapshotStore) keyTime(key string) (time.Time, bool) {
	prefix := fmt.Sprintf("data_%s_", s.source)
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, ".json") {
		return time.Time{}, false
	}
	token := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".json")
	ts, err := time.Parse(snapshotTimeLayout, token)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
