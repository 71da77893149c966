package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/curriculum-portal-api/internal/dto"
	"github.com/noah-isme/curriculum-portal-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	listUsers []models.User
	listCount int
	listErr   error
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listUsers, m.listCount, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = hash
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Active = false
	return nil
}

var adminActor = &models.JWTClaims{UserID: "admin", Role: models.RoleAdministrator}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@example.com"}}, listCount: 1}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 20, pagination.PageSize)

	bogus := models.UserRole("superadmin")
	_, _, err = svc.List(context.Background(), models.UserFilter{Role: &bogus})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"x": {ID: "x", Email: "taken@example.com"}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.Create(context.Background(), adminActor, dto.CreateUserRequest{Email: "USER@EXAMPLE.COM", Name: " User ", Password: "secret123", Role: models.RoleExpert})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, "User", user.Name)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))

	_, err = svc.Create(context.Background(), adminActor, dto.CreateUserRequest{Email: "taken@example.com", Name: "Dup", Password: "secret123", Role: models.RoleStudent})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), adminActor, dto.CreateUserRequest{Email: "new@example.com", Name: "Bad", Password: "secret123", Role: "ADMIN"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"1":     {ID: "1", Email: "a@example.com", Name: "Old", Role: models.RoleFaculty, Active: true},
		"admin": {ID: "admin", Email: "root@example.com", Name: "Root", Role: models.RoleAdministrator, Active: true},
	}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	active := false
	user, err := svc.Update(context.Background(), adminActor, "1", dto.UpdateUserRequest{Name: "New", Role: models.RoleExpert, Active: &active})
	require.NoError(t, err)
	assert.Equal(t, models.RoleExpert, user.Role)
	assert.False(t, repo.users["1"].Active)

	_, err = svc.Update(context.Background(), adminActor, "admin", dto.UpdateUserRequest{Name: "Root", Role: models.RoleFaculty})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), adminActor, "missing", dto.UpdateUserRequest{Name: "X", Role: models.RoleFaculty})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDelete(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@example.com", Role: models.RoleFaculty, Active: true}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), adminActor, "1"))
	assert.False(t, repo.users["1"].Active)

	err := svc.Delete(context.Background(), adminActor, "admin")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), adminActor, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceChangePassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	repo := &mockUserRepo{users: map[string]*models.User{"u1": {ID: "u1", PasswordHash: string(hash), Active: true}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	actor := &models.JWTClaims{UserID: "u1"}

	err := svc.ChangePassword(context.Background(), actor, dto.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "new-password"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	err = svc.ChangePassword(context.Background(), actor, dto.ChangePasswordRequest{CurrentPassword: "old-password", NewPassword: "old-password"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ChangePassword(context.Background(), actor, dto.ChangePasswordRequest{CurrentPassword: "old-password", NewPassword: "new-password"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["u1"].PasswordHash), []byte("new-password")))

	assert.ErrorIs(t, svc.ChangePassword(context.Background(), nil, dto.ChangePasswordRequest{}), appErrors.ErrUnauthorized)
}
