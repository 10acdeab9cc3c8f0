package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/repository"
)

// AttemptLister lists stored attempts.
type AttemptLister interface {
	List(ctx context.Context, testID *uuid.UUID, limit int) ([]repository.AttemptRow, error)
}

// FlagCounter counts proctor flags per user.
type FlagCounter interface {
	CountByUser(ctx context.Context, testID string) (map[string]int64, error)
}

// MonitorSnapshot is the first event of the admin live monitor.
type MonitorSnapshot struct {
	Test       *model.Test             `json:"test"`
	Sessions   []model.ActivitySession `json:"sessions"`
	Attempts   []repository.AttemptRow `json:"attempts"`
	FlagCounts map[string]int64        `json:"flag_counts"`
	Violations ViolationStats          `json:"violations"`
}

// MonitorService aggregates the state shown on the live monitor.
type MonitorService struct {
	tests    TestStore
	activity ActivityStore
	attempts AttemptLister
	flags    FlagCounter
}

func NewMonitorService(tests TestStore, activity ActivityStore, attempts AttemptLister, flags FlagCounter) *MonitorService {
	return &MonitorService{tests: tests, activity: activity, attempts: attempts, flags: flags}
}

// Snapshot gathers the current state of one test.
func (s *MonitorService) Snapshot(ctx context.Context, testID uuid.UUID) (*MonitorSnapshot, error) {
	t, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}

	sessions, err := s.activity.ListByTest(ctx, testID.String())
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []model.ActivitySession{}
	}

	attempts, err := s.attempts.List(ctx, &testID, 1000)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []repository.AttemptRow{}
	}

	counts, err := s.flags.CountByUser(ctx, testID.String())
	if err != nil {
		return nil, err
	}

	report := BuildViolationReport(sessions, map[string]string{testID.String(): t.Title}, ViolationFilter{})
	return &MonitorSnapshot{
		Test:       t,
		Sessions:   sessions,
		Attempts:   attempts,
		FlagCounts: counts,
		Violations: report.Stats,
	}, nil
}

// Attempts lists attempts for the admin table.
func (s *MonitorService) Attempts(ctx context.Context, testID *uuid.UUID, limit int) ([]repository.AttemptRow, error) {
	attempts, err := s.attempts.List(ctx, testID, limit)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []repository.AttemptRow{}
	}
	return attempts, nil
}
