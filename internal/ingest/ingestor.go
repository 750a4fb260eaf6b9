// Package ingest turns a harvested snapshot into idempotent graph
// upserts: tabular batches are staged as CSV blobs, then one merge
// statement per staged chunk runs against the graph store in dependency
// order (channels, users, wallets, casts, edges).
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/TogetherCrew/farcaster/internal/blob"
	"github.com/TogetherCrew/farcaster/internal/graph"
	"github.com/TogetherCrew/farcaster/internal/resolve"
	"github.com/TogetherCrew/farcaster/internal/snapshot"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultChunkRows   = 5000
	defaultMaxAttempts = 10
	defaultRetryUnit   = 10 * time.Second
)

// Ingestor stages batches and submits upserts. Unlike the harvester, a
// batch that cannot be written after the retry budget fails the whole
// run: a silently partial graph write is worse than a loud failure.
type Ingestor struct {
	store       blob.Store
	executor    graph.Executor
	logger      *zap.Logger
	runID       string
	asOf        string
	chunkRows   int
	maxAttempts int
	retryUnit   time.Duration
	sleep       func(time.Duration)
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithChunkRows overrides the staged batch split threshold.
func WithChunkRows(n int) Option {
	return func(i *Ingestor) { i.chunkRows = n }
}

// WithRetry overrides the upsert retry budget and backoff unit.
func WithRetry(maxAttempts int, unit time.Duration) Option {
	return func(i *Ingestor) {
		i.maxAttempts = maxAttempts
		i.retryUnit = unit
	}
}

// NewIngestor creates an ingestor for one run
func NewIngestor(store blob.Store, executor graph.Executor, log *zap.Logger, opts ...Option) *Ingestor {
	ing := &Ingestor{
		store:       store,
		executor:    executor,
		logger:      log,
		runID:       uuid.NewString(),
		asOf:        time.Now().UTC().Format("2006-01-02-15-04"),
		chunkRows:   defaultChunkRows,
		maxAttempts: defaultMaxAttempts,
		retryUnit:   defaultRetryUnit,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Run ingests the snapshot and its resolved edges in dependency order.
// Re-running on the same snapshot converges to the same graph.
func (i *Ingestor) Run(ctx context.Context, snap *snapshot.Snapshot, resolved *resolve.Result) error {
	if err := i.store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure staging bucket: %w", err)
	}

	i.logger.Info("starting ingestion",
		zap.String("run_id", i.runID),
		zap.String("snapshot_run", snap.RunID),
	)

	steps := []struct {
		name  string
		batch batch
		query string
	}{
		{"channels", channelBatch(snap), mergeChannelsQuery},
		{"users", userBatch(snap), mergeUsersQuery},
		{"wallets", walletBatch(snap), mergeWalletsQuery},
		{"casts", castBatch(snap), mergeCastsQuery},
		{"members", memberBatch(snap), connectMembersQuery},
		{"moderators", moderatorBatch(snap), connectModeratorsQuery},
		{"channel_follows", channelFollowerBatch(snap), connectChannelFollowersQuery},
		{"user_follows", edgeBatch("user_follows", resolved.Follows), connectUserFollowsQuery},
		{"posted", edgeBatch("posted", resolved.Posts), connectPostedQuery},
		{"replies", edgeBatch("replies", resolved.Replies), connectRepliesQuery},
		{"likes", edgeBatch("likes", resolved.Likes), connectLikesQuery},
		{"recasts", edgeBatch("recasts", resolved.Recasts), connectRecastsQuery},
	}

	for _, step := range steps {
		if err := i.ingestBatch(ctx, step.name, step.batch, step.query); err != nil {
			return fmt.Errorf("ingestion step %s failed: %w", step.name, err)
		}
	}

	count, err := i.executeWithRetry(ctx, recomputeCastCountersQuery, map[string]any{"runId": i.runID})
	if err != nil {
		return fmt.Errorf("failed to recompute cast counters: %w", err)
	}
	i.logger.Info("cast counters recomputed", zap.Int64("casts", count))

	i.logger.Info("ingestion complete", zap.String("run_id", i.runID))
	return nil
}

// ingestBatch stages one batch and submits one upsert per staged chunk.
func (i *Ingestor) ingestBatch(ctx context.Context, name string, b batch, query string) error {
	if len(b.rows) == 0 {
		i.logger.Info("nothing to ingest", zap.String("step", name))
		return nil
	}

	urls, err := i.stageCSV(ctx, b)
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", b.entity, err)
	}

	var total int64
	for _, url := range urls {
		count, err := i.executeWithRetry(ctx, query, map[string]any{
			"url":   url,
			"runId": i.runID,
		})
		if err != nil {
			return err
		}
		total += count
	}

	i.logger.Info("batch ingested",
		zap.String("step", name),
		zap.Int("rows", len(b.rows)),
		zap.Int("chunks", len(urls)),
		zap.Int64("merged", total),
	)
	return nil
}

// stageCSV writes a batch as one or more CSV blobs, splitting at the
// chunk threshold, and returns the staged locations.
func (i *Ingestor) stageCSV(ctx context.Context, b batch) ([]string, error) {
	var urls []string
	for chunk := 0; chunk*i.chunkRows < len(b.rows); chunk++ {
		start := chunk * i.chunkRows
		end := start + i.chunkRows
		if end > len(b.rows) {
			end = len(b.rows)
		}

		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(b.header); err != nil {
			return nil, fmt.Errorf("failed to write csv header: %w", err)
		}
		if err := w.WriteAll(b.rows[start:end]); err != nil {
			return nil, fmt.Errorf("failed to write csv rows: %w", err)
		}

		key := fmt.Sprintf("%s_%s--%d.csv", b.entity, i.asOf, chunk)
		url, err := i.store.Put(ctx, key, buf.Bytes(), "text/csv")
		if err != nil {
			return nil, fmt.Errorf("failed to stage chunk %s: %w", key, err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// executeWithRetry runs one statement with linear backoff, a fresh
// connection per attempt. Past the budget the error propagates and the
// run is marked failed.
func (i *Ingestor) executeWithRetry(ctx context.Context, query string, params map[string]any) (int64, error) {
	var lastErr error
	for attempt := 1; attempt <= i.maxAttempts; attempt++ {
		if attempt > 1 {
			i.sleep(time.Duration(attempt-1) * i.retryUnit)
		}

		count, err := i.executor.Execute(ctx, query, params)
		if err == nil {
			return count, nil
		}
		lastErr = err
		i.logger.Warn("upsert failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", i.maxAttempts),
			zap.Error(err),
		)
	}
	return 0, fmt.Errorf("upsert failed after %d attempts: %w", i.maxAttempts, lastErr)
}
