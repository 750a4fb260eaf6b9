package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all pipeline configuration
type Config struct {
	// App
	Env string

	// Neynar API
	NeynarAPIKey string

	// Harvest
	Channels   []string
	CutoffDays int

	// Blob store (S3-compatible)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnv("ENV", "development"),
		NeynarAPIKey:  getEnv("NEYNAR_API_KEY", ""),
		Channels:      splitList(getEnv("FARCASTER_CHANNELS", "optimism")),
		CutoffDays:    getEnvInt("CUTOFF_DAYS", 7),
		S3Endpoint:    getEnv("S3_ENDPOINT", "s3.amazonaws.com"),
		S3AccessKey:   getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Bucket:      getEnv("BUCKET_NAME", "tc-farcaster-data"),
		S3UseSSL:      getEnv("S3_USE_SSL", "true") == "true",
		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase: getEnv("NEO4J_DB", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set. Missing
// credentials are fatal here, before any network activity happens.
func (c *Config) Validate() error {
	if c.NeynarAPIKey == "" {
		return fmt.Errorf("NEYNAR_API_KEY is required")
	}
	if c.S3AccessKey == "" || c.S3SecretKey == "" {
		return fmt.Errorf("AWS credentials are missing, check AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("BUCKET_NAME is required")
	}
	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.Neo4jPassword == "" {
		return fmt.Errorf("NEO4J_PASSWORD is required")
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("FARCASTER_CHANNELS must name at least one channel")
	}
	if c.CutoffDays <= 0 {
		return fmt.Errorf("CUTOFF_DAYS must be positive")
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
