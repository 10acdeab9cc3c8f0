package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/edquest/proctor-backend/internal/config"
	"github.com/edquest/proctor-backend/internal/model"
)

func newAuthService(t *testing.T) (*AuthService, *model.User) {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, BcryptCost: bcrypt.MinCost}

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{
		ID:           uuid.New(),
		Email:        "student@example.com",
		Name:         "Student",
		PasswordHash: string(hash),
		Role:         model.RoleStudent,
	}
	return NewAuthService(cfg, &fakeUserStore{users: map[string]*model.User{user.Email: user}}), user
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, user := newAuthService(t)

	resp, err := svc.Login(context.Background(), model.LoginRequest{Email: " Student@Example.com ", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, model.RoleStudent, claims.Role)

	me, err := svc.Me(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, user.Email, me.Email)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthService(t)

	_, err := svc.Login(context.Background(), model.LoginRequest{Email: "student@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), model.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsExpiredAndForeign(t *testing.T) {
	svc, user := newAuthService(t)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := svc.GenerateToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.Error(t, err)

	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour}, nil)
	foreign, err := other.GenerateToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	svc, _ := newAuthService(t)
	hash, err := svc.HashPassword("hunter22")
	require.NoError(t, err)
	assert.NoError(t, svc.CheckPassword(hash, "hunter22"))
	assert.ErrorIs(t, svc.CheckPassword(hash, "nope"), ErrInvalidCredentials)
}
