package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/curriculum-portal-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	findByEmailErr   error
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.userByEmail == nil || m.userByEmail.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

type stubCourses struct {
	courses []models.CourseAccess
}

func (s stubCourses) CoursesFor(ctx context.Context, userID string) ([]models.CourseAccess, error) {
	return s.courses, nil
}

func newAuthFixture(user *models.User) (*AuthService, *mockAuthRepo) {
	repo := &mockAuthRepo{userByEmail: user}
	courses := stubCourses{courses: []models.CourseAccess{{CourseID: "c1", Title: "Algorithms", Access: models.AccessHead}}}
	svc := NewAuthService(repo, courses, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "curriculum-portal"})
	return svc, repo
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	svc, repo := newAuthFixture(&models.User{ID: "123", Email: "user@example.com", Name: "Ada", PasswordHash: string(password), Active: true, Role: models.RoleFaculty})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, "Ada", res.User.Name)
	require.Len(t, res.AccessedCourses, 1)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "123", claims.UserID)
	assert.Equal(t, models.RoleFaculty, claims.Role)
	assert.Equal(t, "curriculum-portal", claims.Issuer)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)

	svc, _ := newAuthFixture(&models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: false})
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)

	svc, _ = newAuthFixture(&models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: true})
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	svc, repo := newAuthFixture(nil)
	repo.findByEmailErr = sql.ErrNoRows
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceMe(t *testing.T) {
	svc, _ := newAuthFixture(&models.User{ID: "u1", Email: "user@example.com", Name: "Ada", Active: true, Role: models.RoleExpert})

	me, err := svc.Me(context.Background(), &models.JWTClaims{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.User.Name)
	assert.Len(t, me.AccessedCourses, 1)

	_, err = svc.Me(context.Background(), &models.JWTClaims{UserID: "gone"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc, _ := newAuthFixture(nil)
	other := NewAuthService(&mockAuthRepo{}, stubCourses{}, nil, nil, AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour})
	token, _, err := other.generateAccessToken(&models.User{ID: "u1", Role: models.RoleAdministrator})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
