package model

import (
	"time"

	"github.com/google/uuid"
)

// Test is an exam definition.
type Test struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

// Question is a multiple-choice question. CorrectAnswer holds the option text,
// not its index.
type Question struct {
	ID            uuid.UUID `json:"id"`
	TestID        uuid.UUID `json:"test_id"`
	QuestionText  string    `json:"question_text"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correct_answer"`
	Points        float64   `json:"points"`
	OrderNum      int       `json:"order_num"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
	Points       float64   `json:"points"`
	OrderNum     int       `json:"order_num"`
}

// TestPaper is the student-facing view of a test.
type TestPaper struct {
	TestID          uuid.UUID            `json:"test_id"`
	Title           string               `json:"title"`
	DurationMinutes int                  `json:"duration_minutes"`
	Questions       []QuestionForStudent `json:"questions"`
}

// NewTestPaper strips answers from questions.
func NewTestPaper(t *Test, questions []Question) TestPaper {
	paper := TestPaper{
		TestID:          t.ID,
		Title:           t.Title,
		DurationMinutes: t.DurationMinutes,
		Questions:       make([]QuestionForStudent, 0, len(questions)),
	}
	for _, q := range questions {
		paper.Questions = append(paper.Questions, QuestionForStudent{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			Points:       q.Points,
			OrderNum:     q.OrderNum,
		})
	}
	return paper
}
