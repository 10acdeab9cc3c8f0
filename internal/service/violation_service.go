package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/edquest/proctor-backend/internal/model"
)

// Severity ranks a violation.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// AlertActions are the logged actions reported as violations.
var AlertActions = []model.Action{
	model.ActionFocusLost,
	model.ActionCopyAttempt,
	model.ActionPasteAttempt,
	model.ActionRightClick,
	model.ActionVisibilityChange,
	model.ActionLoadError,
	model.ActionSubmitError,
}

var violationLabels = map[model.Action]string{
	model.ActionFocusLost:        "Focus Lost",
	model.ActionCopyAttempt:      "Copy Attempt",
	model.ActionPasteAttempt:     "Paste Attempt",
	model.ActionRightClick:       "Right Click",
	model.ActionVisibilityChange: "Tab Switch",
	model.ActionLoadError:        "Load Error",
	model.ActionSubmitError:      "Submit Error",
}

var violationSeverity = map[model.Action]Severity{
	model.ActionCopyAttempt:      SeverityCritical,
	model.ActionPasteAttempt:     SeverityCritical,
	model.ActionSubmitError:      SeverityCritical,
	model.ActionFocusLost:        SeverityHigh,
	model.ActionVisibilityChange: SeverityHigh,
	model.ActionLoadError:        SeverityHigh,
	model.ActionRightClick:       SeverityMedium,
}

// SeverityOf returns the severity of an action, LOW when unranked.
func SeverityOf(a model.Action) Severity {
	if s, ok := violationSeverity[a]; ok {
		return s
	}
	return SeverityLow
}

func isAlertAction(a model.Action) bool {
	_, ok := violationLabels[a]
	return ok
}

// Violation is one alert-worthy event extracted from a session.
type Violation struct {
	SessionID      string       `json:"session_id"`
	UserID         *string      `json:"user_id"`
	TestID         string       `json:"test_id"`
	TestName       string       `json:"test_name"`
	Action         model.Action `json:"action"`
	Label          string       `json:"label"`
	Severity       Severity     `json:"severity"`
	Timestamp      time.Time    `json:"timestamp"`
	SessionCreated time.Time    `json:"session_created"`
	Question       *int         `json:"question"`
}

// ViolationStats summarizes every violation, before filtering.
type ViolationStats struct {
	Total       int                  `json:"total"`
	Critical    int                  `json:"critical"`
	High        int                  `json:"high"`
	Medium      int                  `json:"medium"`
	UniqueUsers int                  `json:"unique_users"`
	TypeCounts  map[model.Action]int `json:"type_counts"`
}

// ViolationFilter narrows the listed violations. Empty fields match all.
type ViolationFilter struct {
	Type     model.Action
	Severity Severity
	Search   string
}

// ViolationReport is the admin violation view.
type ViolationReport struct {
	Stats      ViolationStats `json:"stats"`
	Violations []Violation    `json:"violations"`
}

// BuildViolationReport extracts violations from sessions, newest first, and
// applies filter to the listed entries. Stats always cover the full set.
func BuildViolationReport(sessions []model.ActivitySession, testNames map[string]string, filter ViolationFilter) ViolationReport {
	all := make([]Violation, 0)
	for _, s := range sessions {
		sessionID := s.SessionID
		if sessionID == "" {
			sessionID = "—"
		}
		name, ok := testNames[s.TestID]
		if !ok {
			name = "Unknown Exam"
		}
		for _, ev := range s.Logs {
			if !isAlertAction(ev.Action) {
				continue
			}
			all = append(all, Violation{
				SessionID:      sessionID,
				UserID:         s.UserID,
				TestID:         s.TestID,
				TestName:       name,
				Action:         ev.Action,
				Label:          violationLabels[ev.Action],
				Severity:       SeverityOf(ev.Action),
				Timestamp:      ev.Timestamp,
				SessionCreated: s.CreatedAt,
				Question:       questionOf(ev),
			})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return sortTime(all[i]).After(sortTime(all[j]))
	})

	return ViolationReport{
		Stats:      violationStats(all),
		Violations: filterViolations(all, filter),
	}
}

func sortTime(v Violation) time.Time {
	if v.Timestamp.IsZero() {
		return v.SessionCreated
	}
	return v.Timestamp
}

func questionOf(ev model.ActivityEvent) *int {
	switch q := ev.Detail("currentQuestion").(type) {
	case int:
		return &q
	case float64:
		n := int(q)
		return &n
	}
	return nil
}

func violationStats(all []Violation) ViolationStats {
	stats := ViolationStats{
		Total:      len(all),
		TypeCounts: make(map[model.Action]int, len(AlertActions)),
	}
	for _, a := range AlertActions {
		stats.TypeCounts[a] = 0
	}

	users := make(map[string]struct{})
	for _, v := range all {
		stats.TypeCounts[v.Action]++
		switch v.Severity {
		case SeverityCritical:
			stats.Critical++
		case SeverityHigh:
			stats.High++
		case SeverityMedium:
			stats.Medium++
		}
		if v.UserID != nil && *v.UserID != "" {
			users[*v.UserID] = struct{}{}
		}
	}
	stats.UniqueUsers = len(users)
	return stats
}

func filterViolations(all []Violation, f ViolationFilter) []Violation {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Violation, 0, len(all))
	for _, v := range all {
		if f.Type != "" && v.Action != f.Type {
			continue
		}
		if f.Severity != "" && v.Severity != f.Severity {
			continue
		}
		if term != "" && !matchesSearch(v, term) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func matchesSearch(v Violation, term string) bool {
	if strings.Contains(strings.ToLower(v.TestName), term) ||
		strings.Contains(strings.ToLower(v.SessionID), term) {
		return true
	}
	return v.UserID != nil && strings.Contains(strings.ToLower(*v.UserID), term)
}

// TestLister lists known tests.
type TestLister interface {
	List(ctx context.Context) ([]model.Test, error)
}

// ViolationService builds violation reports from stored sessions.
type ViolationService struct {
	activity ActivityStore
	tests    TestLister
}

func NewViolationService(activity ActivityStore, tests TestLister) *ViolationService {
	return &ViolationService{activity: activity, tests: tests}
}

// Report loads the latest sessions and builds the filtered report.
func (s *ViolationService) Report(ctx context.Context, limit int, filter ViolationFilter) (*ViolationReport, error) {
	sessions, err := s.activity.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	tests, err := s.tests.List(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(tests))
	for _, t := range tests {
		names[t.ID.String()] = t.Title
	}

	report := BuildViolationReport(sessions, names, filter)
	return &report, nil
}
