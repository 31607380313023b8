package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/synapselabs/synapse-api/internal/auth"
	"github.com/synapselabs/synapse-api/internal/config"
	"github.com/synapselabs/synapse-api/internal/db"
	"github.com/synapselabs/synapse-api/internal/derive"
	"github.com/synapselabs/synapse-api/internal/embedding"
	"github.com/synapselabs/synapse-api/internal/httpapi"
	"github.com/synapselabs/synapse-api/internal/keyword"
	"github.com/synapselabs/synapse-api/internal/recommend"
	"github.com/synapselabs/synapse-api/internal/report"
	"github.com/synapselabs/synapse-api/internal/service/syncservice"
	"github.com/synapselabs/synapse-api/internal/store"
)

func main() {
	// Configure structured logging
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "synapse-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Pretty logging for local dev
	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx := context.Background()

	pool, err := db.Open(ctx, cfg.DatabaseURL, cfg.DBPoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool, cfg.EmbeddingDim); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}

	st := store.New(pool)

	// Derivation singletons are built eagerly so the first push doesn't pay
	// initialization cost.
	pipeline := derive.New(embedding.NewLocalProvider(cfg.EmbeddingDim), keyword.NewExtractor())

	tokens := &auth.Tokens{
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}

	srv := &httpapi.Server{
		Sync: syncservice.New(st, pipeline, cfg.SyncMaxBatchItems, cfg.PullPageSize),
		Recommend: recommend.New(st, recommend.Weights{
			Embedding: cfg.RecEmbeddingWeight,
			Keyword:   cfg.RecKeywordWeight,
			Temporal:  cfg.RecTemporalWeight,
		}, cfg.RecMinScore, cfg.RecMaxCandidates),
		Reports:           report.New(st, cfg.ClusterSeed, cfg.ClusterRestarts),
		Users:             st,
		Tokens:            tokens,
		MaxBatchBytes:     cfg.SyncMaxBatchBytes,
		RecommendDefaultK: cfg.RecDefaultK,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
