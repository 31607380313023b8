package store

import (
	"context"
	"time"
)

// UpsertReflection writes the per-day entry with LWW resolution handled in
// SQL: the update only fires when the incoming updated_at is strictly
// newer, which also keeps duplicate pushes idempotent. Returns applied=false
// on a silent LWW drop.
func (s *Store) UpsertReflection(ctx context.Context, r Reflection) (applied bool, err error) {
	tag, err := s.DB.Exec(ctx, `
		INSERT INTO reflections (user_id, date, content, created_at, updated_at, server_timestamp)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id, date) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at,
			server_timestamp = GREATEST(now(), reflections.server_timestamp + interval '1 microsecond')
		WHERE EXCLUDED.updated_at > reflections.updated_at
	`, r.UserID, r.Date, r.Content, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteReflection removes the row. Reflections carry no tombstone, so
// this is a hard delete; missing rows are a no-op.
func (s *Store) DeleteReflection(ctx context.Context, userID, date string) error {
	_, err := s.DB.Exec(ctx,
		`DELETE FROM reflections WHERE user_id = $1 AND date = $2`, userID, date)
	return err
}

// ListReflectionsSince returns the user's reflections with
// server_timestamp strictly after since, ordered ascending.
func (s *Store) ListReflectionsSince(ctx context.Context, userID string, since *time.Time, limit int) ([]Reflection, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT user_id, date, content, created_at, updated_at, server_timestamp
		FROM reflections
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR server_timestamp > $2)
		ORDER BY server_timestamp
		LIMIT $3
	`, userID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reflection
	for rows.Next() {
		var r Reflection
		if err := rows.Scan(&r.UserID, &r.Date, &r.Content, &r.CreatedAt,
			&r.UpdatedAt, &r.ServerTimestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
