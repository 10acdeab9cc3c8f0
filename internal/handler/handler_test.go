package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/edquest/proctor-backend/internal/config"
	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/repository"
	"github.com/edquest/proctor-backend/internal/response"
	"github.com/edquest/proctor-backend/internal/service"
	"github.com/edquest/proctor-backend/internal/validator"
)

var errStorage = errors.New("storage unavailable")

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type fakeActivityStore struct {
	mu       sync.Mutex
	sessions []model.ActivitySession
	err      error
}

func (f *fakeActivityStore) Insert(_ context.Context, s *model.ActivitySession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	s.ID = uuid.New()
	f.sessions = append(f.sessions, *s)
	return nil
}

func (f *fakeActivityStore) ListByTest(_ context.Context, testID string) ([]model.ActivitySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.ActivitySession
	for i := len(f.sessions) - 1; i >= 0; i-- {
		if f.sessions[i].TestID == testID {
			out = append(out, f.sessions[i])
		}
	}
	return out, nil
}

func (f *fakeActivityStore) ListRecent(_ context.Context, limit int) ([]model.ActivitySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.ActivitySession
	for i := len(f.sessions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.sessions[i])
	}
	return out, nil
}

func (f *fakeActivityStore) stored() []model.ActivitySession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ActivitySession(nil), f.sessions...)
}

type fakeTestStore struct {
	tests     []model.Test
	questions map[uuid.UUID][]model.Question
}

func (f *fakeTestStore) List(context.Context) ([]model.Test, error) {
	return f.tests, nil
}

func (f *fakeTestStore) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	for i := range f.tests {
		if f.tests[i].ID == id {
			t := f.tests[i]
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTestStore) ListQuestions(_ context.Context, testID uuid.UUID) ([]model.Question, error) {
	return f.questions[testID], nil
}

type fakeAttemptStore struct {
	mu      sync.Mutex
	created []model.Attempt
}

func (f *fakeAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = uuid.New()
	f.created = append(f.created, *a)
	return nil
}

func (f *fakeAttemptStore) List(_ context.Context, testID *uuid.UUID, limit int) ([]repository.AttemptRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.AttemptRow
	for _, a := range f.created {
		if testID != nil && a.TestID != *testID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, repository.AttemptRow{Attempt: a})
	}
	return out, nil
}

type fakeFlagCounter map[string]int64

func (f fakeFlagCounter) CountByUser(context.Context, string) (map[string]int64, error) {
	return f, nil
}

type fakeUserStore struct {
	users []model.User
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for i := range f.users {
		if f.users[i].Email == email {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// fixture is a fully wired set of services over in-memory stores.
type fixture struct {
	activityStore *fakeActivityStore
	testStore     *fakeTestStore
	attempts      *fakeAttemptStore
	users         *fakeUserStore

	auth       *service.AuthService
	activity   *service.ActivityLogService
	tests      *service.TestService
	submission *service.SubmissionService
	violations *service.ViolationService
	monitor    *service.MonitorService

	test    model.Test
	student model.User
	admin   model.User
}

const testPassword = "s3cret-pass"

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, BcryptCost: 4}
	f := &fixture{
		activityStore: &fakeActivityStore{},
		attempts:      &fakeAttemptStore{},
		users:         &fakeUserStore{},
	}

	f.test = model.Test{ID: uuid.New(), Title: "Physics Midterm", DurationMinutes: 45}
	f.testStore = &fakeTestStore{
		tests: []model.Test{f.test},
		questions: map[uuid.UUID][]model.Question{
			f.test.ID: {
				{ID: uuid.New(), TestID: f.test.ID, QuestionText: "Unit of force?", Options: []string{"Joule", "Newton", "Watt"}, CorrectAnswer: "Newton", Points: 1, OrderNum: 1},
				{ID: uuid.New(), TestID: f.test.ID, QuestionText: "Speed of light?", Options: []string{"3e8 m/s", "3e6 m/s"}, CorrectAnswer: "3e8 m/s", Points: 1, OrderNum: 2},
			},
		},
	}

	f.auth = service.NewAuthService(cfg, f.users)
	hash, err := f.auth.HashPassword(testPassword)
	require.NoError(t, err)
	f.student = model.User{ID: uuid.New(), Email: "ana@school.test", Name: "Ana", PasswordHash: hash, Role: model.RoleStudent}
	f.admin = model.User{ID: uuid.New(), Email: "proctor@school.test", Name: "Proctor", PasswordHash: hash, Role: model.RoleAdmin}
	f.users.users = []model.User{f.student, f.admin}

	log := zerolog.Nop()
	f.activity = service.NewActivityLogService(f.activityStore, nil, log)
	f.tests = service.NewTestService(f.testStore)
	f.submission = service.NewSubmissionService(f.attempts, nil, nil, log, time.Second)
	f.violations = service.NewViolationService(f.activityStore, f.testStore)
	f.monitor = service.NewMonitorService(f.testStore, f.activityStore, f.attempts, fakeFlagCounter{})
	return f
}

func (f *fixture) token(t *testing.T, u model.User) string {
	t.Helper()
	tok, err := f.auth.GenerateToken(&u)
	require.NoError(t, err)
	return tok
}

func doRequest(r http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data any) response.Response {
	t.Helper()
	var raw struct {
		Data     json.RawMessage     `json:"data"`
		Error    *response.ErrorBody `json:"error"`
		Metadata response.Metadata   `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), w.Body.String())
	if data != nil && len(raw.Data) > 0 && string(raw.Data) != "null" {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return response.Response{Error: raw.Error, Metadata: raw.Metadata}
}
