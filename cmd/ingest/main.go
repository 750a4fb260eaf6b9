package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/TogetherCrew/farcaster/internal/blob"
	"github.com/TogetherCrew/farcaster/internal/graph"
	"github.com/TogetherCrew/farcaster/internal/ingest"
	"github.com/TogetherCrew/farcaster/internal/resolve"
	"github.com/TogetherCrew/farcaster/pkg/config"
	"github.com/TogetherCrew/farcaster/pkg/logger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting Farcaster graph ingestion...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	store, err := blob.NewS3Store(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL, log)
	if err != nil {
		log.Fatal("Failed to connect to blob store", zap.Error(err))
	}

	ctx := context.Background()

	snapshots := blob.NewSnapshotStore(store, "farcaster", log)
	snap, err := snapshots.ReadLatest(ctx)
	if err != nil {
		if errors.Is(err, blob.ErrNoSnapshot) {
			log.Fatal("No snapshot available to ingest, run a harvest first")
		}
		log.Fatal("Failed to read latest snapshot", zap.Error(err))
	}

	resolver := resolve.NewResolver(log)
	resolved := resolver.Resolve(snap)

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(ctx)

	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	executor := graph.NewNeo4jExecutor(driver, cfg.Neo4jDatabase, log)
	ingestor := ingest.NewIngestor(store, executor, log)

	if err := ingestor.Run(ctx, snap, resolved); err != nil {
		log.Fatal("Ingestion run failed", zap.Error(err))
	}

	log.Info("Ingestion run complete", zap.String("snapshot_run", snap.RunID))
}
