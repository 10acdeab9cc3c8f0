package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edquest/proctor-backend/internal/model"
)

// ActivityRepository stores one row per flushed activity session.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Insert writes the session with its events as a single JSONB document and
// fills ID and CreatedAt.
func (r *ActivityRepository) Insert(ctx context.Context, s *model.ActivitySession) error {
	logs, err := json.Marshal(s.Logs)
	if err != nil {
		return fmt.Errorf("encode logs: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO activity_logs (session_id, test_id, user_id, log_count, logs)
		 VALUES ($1, $2, $3, $4, $5::jsonb)
		 RETURNING id, created_at`,
		s.SessionID, s.TestID, s.UserID, s.LogCount, logs,
	).Scan(&s.ID, &s.CreatedAt)
}

// ListByTest returns every session recorded for a test, newest first.
func (r *ActivityRepository) ListByTest(ctx context.Context, testID string) ([]model.ActivitySession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, test_id, user_id, log_count, logs, created_at
		 FROM activity_logs
		 WHERE test_id = $1
		 ORDER BY created_at DESC`, testID,
	)
	if err != nil {
		return nil, err
	}
	return scanActivitySessions(rows)
}

// ListRecent returns the latest sessions across all tests.
func (r *ActivityRepository) ListRecent(ctx context.Context, limit int) ([]model.ActivitySession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, test_id, user_id, log_count, logs, created_at
		 FROM activity_logs
		 ORDER BY created_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanActivitySessions(rows)
}

func scanActivitySessions(rows pgx.Rows) ([]model.ActivitySession, error) {
	defer rows.Close()

	var sessions []model.ActivitySession
	for rows.Next() {
		var (
			s   model.ActivitySession
			raw []byte
		)
		if err := rows.Scan(&s.ID, &s.SessionID, &s.TestID, &s.UserID, &s.LogCount, &raw, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &s.Logs); err != nil {
			return nil, fmt.Errorf("decode logs of %s: %w", s.ID, err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
