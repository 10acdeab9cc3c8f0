package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edquest/proctor-backend/internal/model"
)

var ErrTestNotFound = errors.New("test not found")

// TestStore reads tests and questions.
type TestStore interface {
	List(ctx context.Context) ([]model.Test, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
	ListQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
}

// TestService serves exam definitions.
type TestService struct {
	store TestStore
}

func NewTestService(store TestStore) *TestService {
	return &TestService{store: store}
}

// List returns all tests.
func (s *TestService) List(ctx context.Context) ([]model.Test, error) {
	tests, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if tests == nil {
		tests = []model.Test{}
	}
	return tests, nil
}

// Load returns a test with its questions, answers included.
func (s *TestService) Load(ctx context.Context, id uuid.UUID) (*model.Test, []model.Question, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrTestNotFound
		}
		return nil, nil, fmt.Errorf("get test: %w", err)
	}
	questions, err := s.store.ListQuestions(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	return t, questions, nil
}

// Paper returns the student view of a test.
func (s *TestService) Paper(ctx context.Context, id uuid.UUID) (*model.TestPaper, error) {
	t, questions, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	paper := model.NewTestPaper(t, questions)
	return &paper, nil
}
