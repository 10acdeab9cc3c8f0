package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FlagRepository reads persisted proctor flags. Rows are written in bulk by
// the flag worker.
type FlagRepository struct {
	pool *pgxpool.Pool
}

func NewFlagRepository(pool *pgxpool.Pool) *FlagRepository {
	return &FlagRepository{pool: pool}
}

// CountByUser returns the number of flags per user for a test.
func (r *FlagRepository) CountByUser(ctx context.Context, testID string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT COALESCE(user_id, ''), COUNT(*)
		 FROM proctor_flags
		 WHERE test_id = $1
		 GROUP BY user_id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			userID string
			n      int64
		)
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, err
		}
		counts[userID] = n
	}
	return counts, rows.Err()
}
