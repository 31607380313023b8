package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// GetWeeklyReport loads the cached report for (user, week). ErrNotFound
// when never generated.
func (s *Store) GetWeeklyReport(ctx context.Context, userID, weekKey string) (*WeeklyReport, error) {
	var r WeeklyReport
	err := s.DB.QueryRow(ctx, `
		SELECT user_id, week_key, data, created_at
		FROM weekly_reports
		WHERE user_id = $1 AND week_key = $2
	`, userID, weekKey).Scan(&r.UserID, &r.WeekKey, &r.Data, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// SaveWeeklyReport caches a generated report; regeneration replaces the
// previous entry.
func (s *Store) SaveWeeklyReport(ctx context.Context, r WeeklyReport) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO weekly_reports (user_id, week_key, data, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, week_key) DO UPDATE SET
			data = EXCLUDED.data,
			created_at = now()
	`, r.UserID, r.WeekKey, r.Data)
	return err
}
