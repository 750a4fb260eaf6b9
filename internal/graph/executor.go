// Package graph executes idempotent upsert statements against Neo4j.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Executor runs one parameterized upsert statement and returns its
// affected-row count. Implementations acquire whatever connection they
// need per call and release it before returning, so a caller's retry
// loop gets a fresh connection on every attempt.
type Executor interface {
	Execute(ctx context.Context, query string, params map[string]any) (int64, error)
}

// Neo4jExecutor is an Executor over the Bolt driver
type Neo4jExecutor struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewNeo4jExecutor creates an executor on an open driver
func NewNeo4jExecutor(driver neo4j.DriverWithContext, database string, log *zap.Logger) *Neo4jExecutor {
	return &Neo4jExecutor{
		driver:   driver,
		database: database,
		logger:   log,
	}
}

// Close closes the underlying driver
func (e *Neo4jExecutor) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// Execute opens a session, runs the statement, and returns the first
// integer of the single returned record. The session is closed on every
// exit path.
func (e *Neo4jExecutor) Execute(ctx context.Context, query string, params map[string]any) (int64, error) {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: e.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch result record: %w", err)
	}

	return firstInt64(record), nil
}

// firstInt64 returns the record's first integer value.
func firstInt64(record *neo4j.Record) int64 {
	for _, v := range record.Values {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}
