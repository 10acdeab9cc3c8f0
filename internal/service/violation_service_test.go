package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edquest/proctor-backend/internal/model"
)

func event(action model.Action, at time.Duration, question int) model.ActivityEvent {
	return model.ActivityEvent{
		Timestamp: t0.Add(at),
		ElapsedMs: at.Milliseconds(),
		Action:    action,
		Details:   map[string]any{"currentQuestion": float64(question)},
	}
}

func strPtr(s string) *string { return &s }

func reportSessions(testID string) []model.ActivitySession {
	return []model.ActivitySession{
		{
			SessionID: "s-alice",
			TestID:    testID,
			UserID:    strPtr("alice"),
			CreatedAt: t0.Add(time.Hour),
			Logs: []model.ActivityEvent{
				event(model.ActionSessionInit, 0, 0),
				event(model.ActionCopyAttempt, time.Second, 1),
				event(model.ActionFocusLost, 2*time.Second, 1),
				event(model.ActionRightClick, 3*time.Second, 2),
			},
		},
		{
			SessionID: "s-bob",
			TestID:    "deleted-test",
			UserID:    nil,
			CreatedAt: t0.Add(time.Hour),
			Logs: []model.ActivityEvent{
				event(model.ActionVisibilityChange, 10*time.Second, 0),
				event(model.ActionOptionSelected, 11*time.Second, 0),
				event(model.ActionSubmitError, 12*time.Second, 0),
			},
		},
	}
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityOf(model.ActionCopyAttempt))
	assert.Equal(t, SeverityCritical, SeverityOf(model.ActionPasteAttempt))
	assert.Equal(t, SeverityCritical, SeverityOf(model.ActionSubmitError))
	assert.Equal(t, SeverityHigh, SeverityOf(model.ActionFocusLost))
	assert.Equal(t, SeverityHigh, SeverityOf(model.ActionVisibilityChange))
	assert.Equal(t, SeverityHigh, SeverityOf(model.ActionLoadError))
	assert.Equal(t, SeverityMedium, SeverityOf(model.ActionRightClick))
	assert.Equal(t, SeverityLow, SeverityOf(model.ActionKeyCombo))
}

func TestBuildViolationReport(t *testing.T) {
	testID := uuid.NewString()
	report := BuildViolationReport(reportSessions(testID), map[string]string{testID: "Physics"}, ViolationFilter{})

	require.Len(t, report.Violations, 5)
	assert.Equal(t, model.ActionSubmitError, report.Violations[0].Action)
	assert.Equal(t, model.ActionCopyAttempt, report.Violations[4].Action)
	assert.Equal(t, "Unknown Exam", report.Violations[0].TestName)
	assert.Equal(t, "Physics", report.Violations[4].TestName)
	require.NotNil(t, report.Violations[4].Question)
	assert.Equal(t, 1, *report.Violations[4].Question)

	stats := report.Stats
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.Critical)
	assert.Equal(t, 2, stats.High)
	assert.Equal(t, 1, stats.Medium)
	assert.Equal(t, 1, stats.UniqueUsers)
	assert.Equal(t, 1, stats.TypeCounts[model.ActionFocusLost])
	assert.Equal(t, 0, stats.TypeCounts[model.ActionPasteAttempt])
	assert.Len(t, stats.TypeCounts, len(AlertActions))
}

func TestBuildViolationReportFilters(t *testing.T) {
	testID := uuid.NewString()
	names := map[string]string{testID: "Physics"}

	byType := BuildViolationReport(reportSessions(testID), names, ViolationFilter{Type: model.ActionFocusLost})
	require.Len(t, byType.Violations, 1)
	assert.Equal(t, 5, byType.Stats.Total)

	bySeverity := BuildViolationReport(reportSessions(testID), names, ViolationFilter{Severity: SeverityCritical})
	assert.Len(t, bySeverity.Violations, 2)

	byTest := BuildViolationReport(reportSessions(testID), names, ViolationFilter{Search: "phys"})
	assert.Len(t, byTest.Violations, 3)

	bySession := BuildViolationReport(reportSessions(testID), names, ViolationFilter{Search: "S-BOB"})
	assert.Len(t, bySession.Violations, 2)

	byUser := BuildViolationReport(reportSessions(testID), names, ViolationFilter{Search: "ali"})
	assert.Len(t, byUser.Violations, 3)
}

func TestViolationServiceReport(t *testing.T) {
	id := uuid.New()
	store := &fakeActivityStore{sessions: reportSessions(id.String())}
	svc := NewViolationService(store, &fakeTestLister{tests: []model.Test{{ID: id, Title: "Physics"}}})

	report, err := svc.Report(context.Background(), 100, ViolationFilter{Severity: SeverityHigh})
	require.NoError(t, err)
	assert.Len(t, report.Violations, 2)
	assert.Equal(t, 5, report.Stats.Total)
}
