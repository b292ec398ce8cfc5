package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type mockAuthUserRepo struct {
	users      map[string]*models.User
	lastLogins map[string]time.Time
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if m.lastLogins == nil {
		m.lastLogins = make(map[string]time.Time)
	}
	m.lastLogins[id] = ts
	return nil
}

func newAuthService(t *testing.T, users ...*models.User) (*AuthService, *mockAuthUserRepo) {
	t.Helper()
	repo := &mockAuthUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.Email] = u
	}
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "timetable-api",
	})
	return svc, repo
}

func testUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	teacherID := "t1"
	return &models.User{
		ID:           "u1",
		SchoolID:     "school-1",
		Email:        "jordan@school.test",
		PasswordHash: string(hash),
		FullName:     "Jordan Reyes",
		Role:         models.RoleTeacher,
		TeacherID:    &teacherID,
		Active:       true,
	}
}

func TestAuthServiceLogin(t *testing.T) {
	user := testUser(t, "correct-horse")
	svc, repo := newAuthService(t, user)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "school-1", resp.User.SchoolID)
	assert.Greater(t, resp.ExpiresIn, int64(0))
	assert.Contains(t, repo.lastLogins, "u1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "school-1", claims.SchoolID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, "t1", claims.TeacherID)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, repo := newAuthService(t, testUser(t, "correct-horse"))

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "jordan@school.test", Password: "battery-staple"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidCredentials))
	assert.Empty(t, repo.lastLogins)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@school.test", Password: "whatever"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := testUser(t, "correct-horse")
	user.Active = false
	svc, _ := newAuthService(t, user)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "correct-horse"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceLoginValidation(t *testing.T) {
	svc, _ := newAuthService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation))
}

func TestAuthServiceValidateTokenRejectsTampering(t *testing.T) {
	user := testUser(t, "correct-horse")
	svc, _ := newAuthService(t, user)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)

	// Signed with a different secret.
	other := NewAuthService(&mockAuthUserRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "other-secret", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(resp.AccessToken)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnauthorized))

	_, err = svc.ValidateToken("not.a.token")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnauthorized))
}
