package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the synapse API server.
// Values are read from the environment with sensible defaults for local dev.
type Config struct {
	HTTPAddr string
	Env      string // "dev" enables console logging

	DatabaseURL string
	DBPoolSize  int32

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	EmbeddingDim int

	SyncMaxBatchItems int
	SyncMaxBatchBytes int64
	PullPageSize      int

	RecEmbeddingWeight float64
	RecKeywordWeight   float64
	RecTemporalWeight  float64
	RecMinScore        float64
	RecDefaultK        int
	RecMaxCandidates   int

	ClusterSeed     int64
	ClusterRestarts int
}

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Load builds a Config from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr: env("HTTP_ADDR", ":8080"),
		Env:      env("ENV", "dev"),

		DatabaseURL: env("DATABASE_URL", ""),
		DBPoolSize:  int32(envInt("DB_POOL_SIZE", 20)),

		JWTSecret:       env("JWT_SECRET", "dev-secret-change-in-production"),
		AccessTokenTTL:  time.Duration(envInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60)) * time.Minute,
		RefreshTokenTTL: time.Duration(envInt("REFRESH_TOKEN_EXPIRE_DAYS", 30)) * 24 * time.Hour,

		EmbeddingDim: envInt("EMBEDDING_DIM", 1024),

		SyncMaxBatchItems: envInt("SYNC_BATCH_MAX_SIZE", 100),
		SyncMaxBatchBytes: int64(envInt("SYNC_BATCH_MAX_BYTES", 1<<20)),
		PullPageSize:      envInt("SYNC_PULL_PAGE_SIZE", 100),

		RecEmbeddingWeight: envFloat("RECOMMENDATION_EMBEDDING_WEIGHT", 0.6),
		RecKeywordWeight:   envFloat("RECOMMENDATION_KEYWORD_WEIGHT", 0.3),
		RecTemporalWeight:  envFloat("RECOMMENDATION_TEMPORAL_WEIGHT", 0.1),
		RecMinScore:        envFloat("RECOMMENDATION_MIN_SCORE", 0.3),
		RecDefaultK:        envInt("RECOMMENDATION_TOP_K", 10),
		RecMaxCandidates:   envInt("RECOMMENDATION_MAX_CANDIDATES", 50),

		ClusterSeed:     int64(envInt("CLUSTER_SEED", 42)),
		ClusterRestarts: envInt("CLUSTER_RESTARTS", 10),
	}

	if cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}

	return cfg, nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
