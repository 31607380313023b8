package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// DerivedKeyword is one extracted term carried into the note's write.
type DerivedKeyword struct {
	Name  string
	Score float64
}

// rebuildNoteKeywords replaces a note's keyword links with the freshly
// derived set, inside the caller's transaction. Keywords themselves are
// find-or-insert by name and never deleted; orphans are tolerated.
func (s *Store) rebuildNoteKeywords(ctx context.Context, tx pgx.Tx, noteID string, keywords []DerivedKeyword) error {
	if _, err := tx.Exec(ctx,
		`DELETE FROM note_keywords WHERE note_id = $1`, noteID); err != nil {
		return err
	}

	for _, kw := range keywords {
		var keywordID int64
		// ON CONFLICT ... DO UPDATE returns the existing row's id; plain
		// DO NOTHING would return no row for an existing keyword.
		err := tx.QueryRow(ctx, `
			INSERT INTO keywords (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, kw.Name).Scan(&keywordID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO note_keywords (note_id, keyword_id, score)
			VALUES ($1, $2, $3)
			ON CONFLICT (note_id, keyword_id) DO NOTHING
		`, noteID, keywordID, kw.Score); err != nil {
			return err
		}
	}
	return nil
}

// KeywordsForNote lists keyword names linked to one note, score descending.
func (s *Store) KeywordsForNote(ctx context.Context, noteID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT k.name
		FROM note_keywords nk
		JOIN keywords k ON k.id = nk.keyword_id
		WHERE nk.note_id = $1
		ORDER BY nk.score DESC NULLS LAST, k.name
	`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// KeywordsForNotes batches the join read for many notes at once.
func (s *Store) KeywordsForNotes(ctx context.Context, noteIDs []string) (map[string][]string, error) {
	if len(noteIDs) == 0 {
		return map[string][]string{}, nil
	}

	rows, err := s.DB.Query(ctx, `
		SELECT nk.note_id, k.name
		FROM note_keywords nk
		JOIN keywords k ON k.id = nk.keyword_id
		WHERE nk.note_id = ANY($1)
		ORDER BY nk.note_id, nk.score DESC NULLS LAST, k.name
	`, noteIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string, len(noteIDs))
	for rows.Next() {
		var noteID, name string
		if err := rows.Scan(&noteID, &name); err != nil {
			return nil, err
		}
		out[noteID] = append(out[noteID], name)
	}
	return out, rows.Err()
}
