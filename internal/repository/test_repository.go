package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edquest/proctor-backend/internal/model"
)

// TestRepository handles tests and their questions.
type TestRepository struct {
	pool *pgxpool.Pool
}

func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// List returns all tests, newest first.
func (r *TestRepository) List(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, COALESCE(description, ''), duration_minutes, created_at
		 FROM tests
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.DurationMinutes, &t.CreatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// GetByID retrieves a test by its UUID.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, COALESCE(description, ''), duration_minutes, created_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.DurationMinutes, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListQuestions returns the questions of a test in display order.
func (r *TestRepository) ListQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, question_text, options, correct_answer, points, order_num
		 FROM questions
		 WHERE test_id = $1
		 ORDER BY order_num ASC`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.QuestionText, &q.Options, &q.CorrectAnswer, &q.Points, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a test with its questions in one transaction and fills
// the generated ids.
func (r *TestRepository) Create(ctx context.Context, t *model.Test, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO tests (title, description, duration_minutes)
		 VALUES ($1, NULLIF($2, ''), $3)
		 RETURNING id, created_at`,
		t.Title, t.Description, t.DurationMinutes,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return err
	}

	for i := range questions {
		q := &questions[i]
		q.TestID = t.ID
		if q.OrderNum == 0 {
			q.OrderNum = i + 1
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO questions (test_id, question_text, options, correct_answer, points, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			q.TestID, q.QuestionText, q.Options, q.CorrectAnswer, q.Points, q.OrderNum,
		).Scan(&q.ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
