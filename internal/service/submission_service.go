package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/metrics"
	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/notify"
	"github.com/edquest/proctor-backend/internal/realtime"
)

var ErrSubmitFailed = errors.New("failed to submit exam")

const defaultFlushTimeout = 10 * time.Second

// AttemptStore persists completed attempts.
type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
}

// SessionLog is the activity buffer of the submitting session.
type SessionLog interface {
	Log(action model.Action, details map[string]any)
	Flush(ctx context.Context, userID *string) error
}

// Notifier shows a message to the student.
type Notifier interface {
	Add(t notify.Type, title, systemMsg, message string) notify.Notification
}

// SubmitRequest carries everything one submission needs. UserID is nil for
// an unauthenticated candidate, in which case no attempt is stored.
type SubmitRequest struct {
	TestID    uuid.UUID
	UserID    *uuid.UUID
	Questions []model.Question
	Answers   map[int]string
	Log       SessionLog
	Notifier  Notifier
}

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	Score     float64        `json:"score"`
	Correct   int            `json:"correct"`
	Total     int            `json:"total"`
	Attempt   *model.Attempt `json:"attempt,omitempty"`
	Persisted bool           `json:"persisted"`
}

// SubmissionService grades an exam, stores the attempt and flushes the
// session's activity log.
type SubmissionService struct {
	attempts     AttemptStore
	publisher    *realtime.Publisher
	metrics      *metrics.Metrics
	log          zerolog.Logger
	flushTimeout time.Duration
}

func NewSubmissionService(
	attempts AttemptStore,
	publisher *realtime.Publisher,
	m *metrics.Metrics,
	log zerolog.Logger,
	flushTimeout time.Duration,
) *SubmissionService {
	s := &SubmissionService{
		attempts:     attempts,
		publisher:    publisher,
		metrics:      m,
		log:          log.With().Str("component", "submission_service").Logger(),
		flushTimeout: flushTimeout,
	}
	if s.flushTimeout <= 0 {
		s.flushTimeout = defaultFlushTimeout
	}
	return s
}

// Score returns 100 × the points of correctly answered questions over the
// total points, or 0 when the total is 0. answers maps question index to the
// selected option text.
func Score(questions []model.Question, answers map[int]string) (score float64, correct int) {
	var earned, total float64
	for i, q := range questions {
		total += q.Points
		if ans, ok := answers[i]; ok && ans == q.CorrectAnswer {
			earned += q.Points
			correct++
		}
	}
	if total == 0 {
		return 0, correct
	}
	return 100 * earned / total, correct
}

// Submit grades and persists one submission. The activity log is flushed
// whatever the outcome. A storage failure is reported to the student and
// returned wrapped in ErrSubmitFailed.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	req.Log.Log(model.ActionSubmitInitiated, map[string]any{
		"answered": len(req.Answers),
		"total":    len(req.Questions),
	})

	score, correct := Score(req.Questions, req.Answers)
	result := &SubmitResult{Score: score, Correct: correct, Total: len(req.Questions)}

	var userID *string
	if req.UserID != nil {
		id := req.UserID.String()
		userID = &id
	}
	defer s.flush(ctx, req.Log, userID)

	if req.UserID != nil {
		attempt := &model.Attempt{
			UserID: *req.UserID,
			TestID: req.TestID,
			Score:  score,
			Status: model.AttemptStatusCompleted,
		}
		if err := s.attempts.Create(ctx, attempt); err != nil {
			s.log.Error().Err(err).
				Str("test_id", req.TestID.String()).
				Str("user_id", *userID).
				Msg("Failed to store attempt")
			req.Log.Log(model.ActionSubmitError, map[string]any{"error": err.Error()})
			s.notify(req.Notifier, notify.TypeAlert, "ERROR", "SUBMISSION FAILED",
				"Your exam could not be submitted. Please try again.")
			s.metrics.ObserveSubmission("error")
			return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
		}
		result.Attempt = attempt
		result.Persisted = true
		s.publisher.Publish(ctx, req.TestID.String(), realtime.EventAttempt, attempt)
	}

	req.Log.Log(model.ActionSubmitSuccess, map[string]any{
		"score":   score,
		"correct": correct,
		"total":   len(req.Questions),
	})
	s.notify(req.Notifier, notify.TypeSuccess, "SUCCESS", "LOG: 200_OK",
		fmt.Sprintf("Exam submitted. Score: %.1f", score))
	s.metrics.ObserveSubmission("success")

	s.log.Info().
		Str("test_id", req.TestID.String()).
		Float64("score", score).
		Int("correct", correct).
		Int("total", len(req.Questions)).
		Msg("Exam submitted and graded")
	return result, nil
}

// flush runs detached from ctx so a closing connection does not abort it.
func (s *SubmissionService) flush(ctx context.Context, log SessionLog, userID *string) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flushTimeout)
	defer cancel()
	// Errors are already logged by the session logger.
	_ = log.Flush(flushCtx, userID)
}

func (s *SubmissionService) notify(n Notifier, t notify.Type, title, systemMsg, message string) {
	if n == nil {
		return
	}
	n.Add(t, title, systemMsg, message)
}
