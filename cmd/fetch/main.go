package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/TogetherCrew/farcaster/internal/blob"
	"github.com/TogetherCrew/farcaster/internal/harvest"
	"github.com/TogetherCrew/farcaster/internal/neynar"
	"github.com/TogetherCrew/farcaster/pkg/config"
	"github.com/TogetherCrew/farcaster/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting Farcaster harvest...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	store, err := blob.NewS3Store(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL, log)
	if err != nil {
		log.Fatal("Failed to connect to blob store", zap.Error(err))
	}

	checkpoints := blob.NewCheckpointStore(store, log)
	snapshots := blob.NewSnapshotStore(store, "farcaster", log)
	client := neynar.NewClient(cfg.NeynarAPIKey, log)
	harvester := harvest.NewHarvester(client, cfg.Channels, log)

	ctx := context.Background()

	checkpoint, err := checkpoints.Load(ctx)
	if err != nil {
		log.Fatal("Failed to load checkpoint", zap.Error(err))
	}
	var marker *time.Time
	if checkpoint != nil {
		marker = &checkpoint.LastRun
	}
	cutoff := harvest.CutoffTimestamp(marker, cfg.CutoffDays, time.Now().UTC())

	snap := harvester.Run(ctx, cutoff)

	key, err := snapshots.Write(ctx, snap)
	if err != nil {
		log.Fatal("Failed to write snapshot", zap.Error(err))
	}

	// The marker advances only once the harvest has fully completed and
	// its snapshot is persisted.
	if err := checkpoints.Save(ctx, blob.Checkpoint{LastRun: time.Now().UTC()}); err != nil {
		log.Fatal("Failed to save checkpoint", zap.Error(err))
	}

	log.Info("Harvest run complete", zap.String("snapshot", key))
}
