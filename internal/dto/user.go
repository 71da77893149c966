package dto

import "github.com/noah-isme/curriculum-portal-api/internal/models"

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Name     string          `json:"name" validate:"required,max=200"`
	Role     models.UserRole `json:"role" validate:"required,oneof=administrator faculty expert student"`
	Password string          `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest payload for updating users.
type UpdateUserRequest struct {
	Name   string          `json:"name" validate:"required,max=200"`
	Role   models.UserRole `json:"role" validate:"required,oneof=administrator faculty expert student"`
	Active *bool           `json:"active"`
}

// ChangePasswordRequest replaces the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,nefield=CurrentPassword"`
}
