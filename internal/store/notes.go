package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

// monotonicTS advances server_timestamp for an existing row. Wall clock is
// the normal source; the GREATEST guard keeps the value strictly increasing
// even under clock regression.
const monotonicTS = `GREATEST(now(), server_timestamp + interval '1 microsecond')`

// NoteWrite is the payload for a note upsert. Embedding may be nil when
// derivation failed; the write still succeeds.
type NoteWrite struct {
	ID         string
	UserID     string
	Body       string
	Importance int
	SourceURL  *string
	ImagePath  *string
	Embedding  *pgvector.Vector
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// NoteMeta is the minimal state needed for an LWW pre-check.
type NoteMeta struct {
	UserID    string
	UpdatedAt time.Time
}

// GetNoteMeta loads owner and updated_at for a note regardless of owner or
// deletion state. Returns ErrNotFound when the row is absent.
func (s *Store) GetNoteMeta(ctx context.Context, noteID string) (*NoteMeta, error) {
	var m NoteMeta
	err := s.DB.QueryRow(ctx,
		`SELECT user_id, updated_at FROM notes WHERE id = $1`, noteID,
	).Scan(&m.UserID, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetNote loads a full note row owned by userID. Returns ErrNotFound when
// absent or foreign-owned (existence is not leaked across users).
func (s *Store) GetNote(ctx context.Context, userID, noteID string) (*Note, error) {
	var n Note
	err := s.DB.QueryRow(ctx, `
		SELECT id, user_id, body, importance, source_url, image_path, embedding,
		       created_at, updated_at, deleted_at, server_timestamp
		FROM notes
		WHERE id = $1 AND user_id = $2
	`, noteID, userID).Scan(
		&n.ID, &n.UserID, &n.Body, &n.Importance, &n.SourceURL, &n.ImagePath,
		&n.Embedding, &n.CreatedAt, &n.UpdatedAt, &n.DeletedAt, &n.ServerTimestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// UpsertNote applies one note write with LWW conflict resolution and
// atomically rebuilds the note's keyword links. The whole item runs in one
// transaction with the row locked, so the updated_at comparison is
// linearizable per note. Returns applied=false when the incoming write
// loses LWW (a silent drop, reported as success upstream).
func (s *Store) UpsertNote(ctx context.Context, w NoteWrite, keywords []DerivedKeyword) (applied bool, err error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var ownerID string
	var storedUpdatedAt time.Time
	err = tx.QueryRow(ctx,
		`SELECT user_id, updated_at FROM notes WHERE id = $1 FOR UPDATE`, w.ID,
	).Scan(&ownerID, &storedUpdatedAt)

	switch {
	case err == nil:
		if ownerID != w.UserID {
			return false, ErrForbidden
		}
		// Strict > keeps duplicate pushes idempotent: an equal timestamp
		// loses and the first-applied write survives.
		if !w.UpdatedAt.After(storedUpdatedAt) {
			return false, tx.Commit(ctx)
		}
		_, err = tx.Exec(ctx, `
			UPDATE notes SET
				body = $2, importance = $3, source_url = $4, image_path = $5,
				embedding = $6, updated_at = $7, deleted_at = $8,
				server_timestamp = `+monotonicTS+`
			WHERE id = $1
		`, w.ID, w.Body, w.Importance, w.SourceURL, w.ImagePath,
			w.Embedding, w.UpdatedAt, w.DeletedAt)
		if err != nil {
			return false, err
		}
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO notes (id, user_id, body, importance, source_url, image_path,
			                   embedding, created_at, updated_at, deleted_at, server_timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		`, w.ID, w.UserID, w.Body, w.Importance, w.SourceURL, w.ImagePath,
			w.Embedding, w.CreatedAt, w.UpdatedAt, w.DeletedAt)
		if err != nil {
			return false, err
		}
	default:
		return false, err
	}

	if err := s.rebuildNoteKeywords(ctx, tx, w.ID, keywords); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SoftDeleteNote marks a note deleted under the same LWW rule: the
// tombstone timestamp must beat the stored updated_at. A winning delete
// also advances updated_at to the tombstone so later stale updates lose.
// Deleting an absent note is a no-op success.
func (s *Store) SoftDeleteNote(ctx context.Context, userID, noteID string, deletedAt time.Time) (applied bool, err error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var ownerID string
	var storedUpdatedAt time.Time
	err = tx.QueryRow(ctx,
		`SELECT user_id, updated_at FROM notes WHERE id = $1 FOR UPDATE`, noteID,
	).Scan(&ownerID, &storedUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debug().Str("note_id", noteID).Msg("delete for absent note, no-op")
			return false, tx.Commit(ctx)
		}
		return false, err
	}
	if ownerID != userID {
		return false, ErrForbidden
	}
	if !deletedAt.After(storedUpdatedAt) {
		return false, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE notes SET deleted_at = $2, updated_at = $2,
			server_timestamp = `+monotonicTS+`
		WHERE id = $1
	`, noteID, deletedAt)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ListNotesSince returns user-owned notes with server_timestamp strictly
// after since (all rows when since is nil), ordered by server_timestamp
// ascending, capped at limit.
func (s *Store) ListNotesSince(ctx context.Context, userID string, since *time.Time, limit int) ([]Note, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id, body, importance, source_url, image_path,
		       created_at, updated_at, deleted_at, server_timestamp
		FROM notes
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR server_timestamp > $2)
		ORDER BY server_timestamp
		LIMIT $3
	`, userID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Body, &n.Importance, &n.SourceURL,
			&n.ImagePath, &n.CreatedAt, &n.UpdatedAt, &n.DeletedAt, &n.ServerTimestamp); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// NearestNotes runs the pgvector cosine-distance query: user-owned,
// non-deleted notes with embeddings, excluding the source note, nearest
// first. Similarity is 1 - cosine_distance.
func (s *Store) NearestNotes(ctx context.Context, userID, excludeNoteID string, embedding pgvector.Vector, limit int) ([]Neighbor, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, body, created_at, 1 - (embedding <=> $1) AS similarity
		FROM notes
		WHERE user_id = $2
		  AND id != $3
		  AND deleted_at IS NULL
		  AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $4
	`, embedding, userID, excludeNoteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var nb Neighbor
		if err := rows.Scan(&nb.ID, &nb.Body, &nb.CreatedAt, &nb.Similarity); err != nil {
			return nil, err
		}
		out = append(out, nb)
	}
	return out, rows.Err()
}

// NotesCreatedBetween returns non-deleted, embedded notes whose created_at
// falls in [from, to), ordered by created_at ascending. Used by the weekly
// report engine.
func (s *Store) NotesCreatedBetween(ctx context.Context, userID string, from, to time.Time) ([]Note, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id, body, importance, source_url, image_path, embedding,
		       created_at, updated_at, deleted_at, server_timestamp
		FROM notes
		WHERE user_id = $1
		  AND created_at >= $2 AND created_at < $3
		  AND deleted_at IS NULL
		  AND embedding IS NOT NULL
		ORDER BY created_at
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Body, &n.Importance, &n.SourceURL,
			&n.ImagePath, &n.Embedding, &n.CreatedAt, &n.UpdatedAt, &n.DeletedAt,
			&n.ServerTimestamp); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
