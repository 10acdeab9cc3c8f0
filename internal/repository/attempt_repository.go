package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edquest/proctor-backend/internal/model"
)

// AttemptRow is an attempt joined with the candidate and test names.
type AttemptRow struct {
	model.Attempt
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	TestTitle string `json:"test_title"`
}

// AttemptRepository handles exam attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a completed attempt and fills ID and CompletedAt.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_attempts (user_id, test_id, score, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, completed_at`,
		a.UserID, a.TestID, a.Score, a.Status,
	).Scan(&a.ID, &a.CompletedAt)
}

// List returns attempts, newest first, optionally limited to one test.
func (r *AttemptRepository) List(ctx context.Context, testID *uuid.UUID, limit int) ([]AttemptRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.user_id, a.test_id, a.score, a.status, a.completed_at,
		        u.name, u.email, t.title
		 FROM test_attempts a
		 JOIN users u ON u.id = a.user_id
		 JOIN tests t ON t.id = a.test_id
		 WHERE ($1::uuid IS NULL OR a.test_id = $1)
		 ORDER BY a.completed_at DESC
		 LIMIT $2`, testID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []AttemptRow
	for rows.Next() {
		var a AttemptRow
		if err := rows.Scan(&a.ID, &a.UserID, &a.TestID, &a.Score, &a.Status, &a.CompletedAt,
			&a.UserName, &a.UserEmail, &a.TestTitle); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
