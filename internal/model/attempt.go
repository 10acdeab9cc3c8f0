package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates exam attempt states.
type AttemptStatus string

const (
	AttemptStatusCompleted AttemptStatus = "completed"
)

// Attempt is the persisted result of one submitted exam.
type Attempt struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	TestID      uuid.UUID     `json:"test_id"`
	Score       float64       `json:"score"`
	Status      AttemptStatus `json:"status"`
	CompletedAt time.Time     `json:"completed_at"`
}
