package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edquest/proctor-backend/internal/model"
)

var t0 = time.Date(2026, 5, 12, 8, 30, 0, 0, time.UTC)

var errStorage = errors.New("storage unavailable")

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
	var out []model.ActivitySession
	for i := len(f.sessions) - 1; i >= 0; i-- {
		if f.sessions[i].TestID == testID {
			out = append(out, f.sessions[i])
		}
	}
	return out, f.err
}

func (f *fakeActivityStore) ListRecent(_ context.Context, limit int) ([]model.ActivitySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ActivitySession
	for i := len(f.sessions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.sessions[i])
	}
	return out, f.err
}

type fakeAttemptStore struct {
	created []model.Attempt
	err     error
}

func (f *fakeAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	if f.err != nil {
		return f.err
	}
	a.ID = uuid.New()
	a.CompletedAt = t0
	f.created = append(f.created, *a)
	return nil
}

type fakeUserStore struct {
	users map[string]*model.User
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeTestLister struct {
	tests []model.Test
}

func (f *fakeTestLister) List(context.Context) ([]model.Test, error) { return f.tests, nil }
