package store

import (
	"context"
	"time"
)

// InsertRelation inserts a relation if absent. Duplicate ids are a no-op:
// relation inserts are idempotent by contract. Endpoint ownership is
// verified by the caller before this runs.
func (s *Store) InsertRelation(ctx context.Context, r Relation) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO relations (id, from_note_id, to_note_id, relation_type, created_at, server_timestamp)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO NOTHING
	`, r.ID, r.FromNoteID, r.ToNoteID, r.RelationType, r.CreatedAt)
	return err
}

// DeleteRelation hard-deletes a relation, but only when its from-note is
// owned by userID. Deleting a missing or foreign relation is a no-op.
func (s *Store) DeleteRelation(ctx context.Context, userID, relationID string) error {
	_, err := s.DB.Exec(ctx, `
		DELETE FROM relations r
		USING notes n
		WHERE r.id = $1 AND n.id = r.from_note_id AND n.user_id = $2
	`, relationID, userID)
	return err
}

// ListRelationsSince returns relations whose from-note belongs to userID
// with server_timestamp strictly after since, ordered ascending.
func (s *Store) ListRelationsSince(ctx context.Context, userID string, since *time.Time, limit int) ([]Relation, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT r.id, r.from_note_id, r.to_note_id, r.relation_type, r.created_at, r.server_timestamp
		FROM relations r
		JOIN notes n ON n.id = r.from_note_id
		WHERE n.user_id = $1 AND ($2::timestamptz IS NULL OR r.server_timestamp > $2)
		ORDER BY r.server_timestamp
		LIMIT $3
	`, userID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.ID, &r.FromNoteID, &r.ToNoteID, &r.RelationType,
			&r.CreatedAt, &r.ServerTimestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
