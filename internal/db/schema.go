package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// schema is applied at startup. Statements are idempotent so repeated boots
// against the same database are safe. The embedding column dimension is
// substituted from config (must match the provider's declared dimension).
const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS users (
	id            text PRIMARY KEY,
	email         text NOT NULL UNIQUE,
	password_hash text NOT NULL,
	is_active     boolean NOT NULL DEFAULT true,
	created_at    timestamptz NOT NULL DEFAULT now(),
	updated_at    timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notes (
	id               text PRIMARY KEY,
	user_id          text NOT NULL REFERENCES users(id),
	body             text NOT NULL,
	importance       int NOT NULL DEFAULT 3,
	source_url       text,
	image_path       text,
	embedding        vector(%d),
	created_at       timestamptz NOT NULL,
	updated_at       timestamptz NOT NULL,
	deleted_at       timestamptz,
	server_timestamp timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_notes_user_server_ts ON notes (user_id, server_timestamp);
CREATE INDEX IF NOT EXISTS idx_notes_user_created ON notes (user_id, created_at);

CREATE TABLE IF NOT EXISTS keywords (
	id   bigserial PRIMARY KEY,
	name text NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS note_keywords (
	note_id    text NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	keyword_id bigint NOT NULL REFERENCES keywords(id),
	score      double precision,
	PRIMARY KEY (note_id, keyword_id)
);

CREATE TABLE IF NOT EXISTS relations (
	id               text PRIMARY KEY,
	from_note_id     text NOT NULL REFERENCES notes(id),
	to_note_id       text NOT NULL REFERENCES notes(id),
	relation_type    text NOT NULL,
	created_at       timestamptz NOT NULL,
	server_timestamp timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_relations_from ON relations (from_note_id);

CREATE TABLE IF NOT EXISTS reflections (
	user_id          text NOT NULL REFERENCES users(id),
	date             text NOT NULL,
	content          text NOT NULL,
	created_at       timestamptz NOT NULL,
	updated_at       timestamptz NOT NULL,
	server_timestamp timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, date)
);
CREATE INDEX IF NOT EXISTS idx_reflections_user_server_ts ON reflections (user_id, server_timestamp);

CREATE TABLE IF NOT EXISTS weekly_reports (
	user_id    text NOT NULL REFERENCES users(id),
	week_key   text NOT NULL,
	data       jsonb NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, week_key)
);
`

// EnsureSchema applies the embedded DDL. The vector index is created
// separately because ivfflat refuses to build on an empty table in some
// pgvector versions; failure there is non-fatal.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) error {
	if _, err := pool.Exec(ctx, fmt.Sprintf(schema, embeddingDim)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	const vectorIndex = `
		CREATE INDEX IF NOT EXISTS idx_notes_embedding ON notes
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`
	if _, err := pool.Exec(ctx, vectorIndex); err != nil {
		log.Warn().Err(err).Msg("vector index creation failed, continuing with sequential scans")
	}

	log.Info().Int("embedding_dim", embeddingDim).Msg("database schema ensured")
	return nil
}
