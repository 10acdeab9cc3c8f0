// Package activity buffers the timestamped behavioral events of one exam
// session in memory and persists them in a single batch.
package activity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/clock"
	"github.com/edquest/proctor-backend/internal/metrics"
	"github.com/edquest/proctor-backend/internal/model"
)

// Sink persists a complete activity session with one insert.
type Sink interface {
	SaveSession(ctx context.Context, s *model.ActivitySession) error
}

// Logger is the append-only event buffer for one exam session.
type Logger struct {
	clock   clock.Clock
	sink    Sink
	log     zerolog.Logger
	metrics *metrics.Metrics

	sessionID string
	testID    string
	start     time.Time

	mu     sync.Mutex
	events []model.ActivityEvent
}

// NewLogger starts a session buffer for testID. The session clock starts now.
func NewLogger(clk clock.Clock, testID string, sink Sink, log zerolog.Logger, m *metrics.Metrics) *Logger {
	start := clk.Now()
	sessionID := newSessionID(start)
	return &Logger{
		clock:     clk,
		sink:      sink,
		metrics:   m,
		sessionID: sessionID,
		testID:    testID,
		start:     start,
		log: log.With().
			Str("component", "activity_logger").
			Str("session_id", sessionID).
			Str("test_id", testID).
			Logger(),
	}
}

// newSessionID combines the start time with a random suffix.
func newSessionID(start time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%d-%s", start.UnixMilli(), suffix)
}

func (l *Logger) SessionID() string    { return l.sessionID }
func (l *Logger) TestID() string       { return l.testID }
func (l *Logger) StartedAt() time.Time { return l.start }

// Log appends an event. It never blocks on I/O and never fails.
func (l *Logger) Log(action model.Action, details map[string]any) {
	now := l.clock.Now()

	var copied map[string]any
	if len(details) > 0 {
		copied = make(map[string]any, len(details))
		for k, v := range details {
			copied[k] = v
		}
	}

	l.mu.Lock()
	elapsed := now.Sub(l.start).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	// elapsedMs stays non-decreasing even if the wall clock steps back.
	if n := len(l.events); n > 0 && elapsed < l.events[n-1].ElapsedMs {
		elapsed = l.events[n-1].ElapsedMs
	}
	l.events = append(l.events, model.ActivityEvent{
		Timestamp: l.start.Add(time.Duration(elapsed) * time.Millisecond),
		ElapsedMs: elapsed,
		Action:    action,
		TestID:    l.testID,
		Details:   copied,
	})
	l.mu.Unlock()

	l.metrics.ObserveEvent(string(action))
	l.log.Debug().Str("action", string(action)).Int64("elapsed_ms", elapsed).Msg("Activity logged")
}

// AllLogs returns a snapshot of the buffer. The underlying buffer is not affected.
func (l *Logger) AllLogs() []model.ActivityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.ActivityEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of buffered events.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Flush persists the whole buffer plus session metadata in one insert.
// The buffer is kept, so a later flush sends a superset. Failures are logged
// and returned for the caller's information only; nothing is retried.
func (l *Logger) Flush(ctx context.Context, userID *string) error {
	logs := l.AllLogs()
	if len(logs) == 0 {
		l.log.Debug().Msg("Nothing to flush")
		return nil
	}

	session := &model.ActivitySession{
		SessionID: l.sessionID,
		TestID:    l.testID,
		UserID:    userID,
		LogCount:  len(logs),
		Logs:      logs,
		CreatedAt: l.clock.Now(),
	}

	start := time.Now()
	err := l.sink.SaveSession(ctx, session)
	l.metrics.ObserveFlush(start, err)
	if err != nil {
		l.log.Warn().Err(err).Int("count", len(logs)).Msg("Activity log flush failed, batch dropped")
		return fmt.Errorf("flush activity logs: %w", err)
	}

	l.log.Info().Int("count", len(logs)).Msg("Activity logs flushed")
	return nil
}
