package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/realtime"
)

// Legacy ingest defaults for omitted identifiers.
const (
	AnonymousUserID  = "anonymous"
	UnknownSessionID = "unknown"
)

var (
	ErrMissingTestID = errors.New("testId is required")
	ErrEmptyLogs     = errors.New("logs must be a non-empty array")
)

// ActivityStore persists and reads activity sessions.
type ActivityStore interface {
	Insert(ctx context.Context, s *model.ActivitySession) error
	ListByTest(ctx context.Context, testID string) ([]model.ActivitySession, error)
	ListRecent(ctx context.Context, limit int) ([]model.ActivitySession, error)
}

// activitySummary is the monitor feed payload for a stored session.
type activitySummary struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    *string   `json:"user_id"`
	LogCount  int       `json:"log_count"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityLogService stores flushed activity sessions. It is the persistence
// sink of every session logger.
type ActivityLogService struct {
	store     ActivityStore
	publisher *realtime.Publisher
	log       zerolog.Logger
	now       func() time.Time
}

func NewActivityLogService(store ActivityStore, publisher *realtime.Publisher, log zerolog.Logger) *ActivityLogService {
	return &ActivityLogService{
		store:     store,
		publisher: publisher,
		log:       log.With().Str("component", "activity_service").Logger(),
		now:       time.Now,
	}
}

// SaveSession inserts one session row and announces it on the monitor feed.
func (s *ActivityLogService) SaveSession(ctx context.Context, session *model.ActivitySession) error {
	if err := s.store.Insert(ctx, session); err != nil {
		return fmt.Errorf("insert activity session: %w", err)
	}

	s.publisher.Publish(ctx, session.TestID, realtime.EventActivitySession, activitySummary{
		ID:        session.ID.String(),
		SessionID: session.SessionID,
		UserID:    session.UserID,
		LogCount:  session.LogCount,
		CreatedAt: session.CreatedAt,
	})
	return nil
}

// SaveLegacy validates and stores a payload from the legacy ingest endpoint.
func (s *ActivityLogService) SaveLegacy(ctx context.Context, req model.SaveActivityLogsRequest) (*model.ActivitySession, error) {
	if req.TestID == "" {
		return nil, ErrMissingTestID
	}
	if len(req.Logs) == 0 {
		return nil, ErrEmptyLogs
	}

	userID := req.UserID
	if userID == "" {
		userID = AnonymousUserID
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = UnknownSessionID
	}

	session := &model.ActivitySession{
		SessionID: sessionID,
		TestID:    req.TestID,
		UserID:    &userID,
		LogCount:  len(req.Logs),
		Logs:      req.Logs,
		CreatedAt: s.now(),
	}
	if err := s.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ListByTest returns the sessions of one test, newest first.
func (s *ActivityLogService) ListByTest(ctx context.Context, testID string) ([]model.ActivitySession, error) {
	sessions, err := s.store.ListByTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []model.ActivitySession{}
	}
	return sessions, nil
}

// ListRecent returns the latest sessions of all tests.
func (s *ActivityLogService) ListRecent(ctx context.Context, limit int) ([]model.ActivitySession, error) {
	sessions, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []model.ActivitySession{}
	}
	return sessions, nil
}
