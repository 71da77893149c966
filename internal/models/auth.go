package models

import "github.com/golang-jwt/jwt/v5"

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse mirrors the session payload the portal front end expects.
type LoginResponse struct {
	Status          string         `json:"status"`
	User            UserInfo       `json:"user"`
	AccessedCourses []CourseAccess `json:"accessedCourses"`
	Token           string         `json:"-"`
	ExpiresIn       int64          `json:"expiresIn"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
}

// JWTClaims represents the JWT payload of the session cookie.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	jwt.RegisteredClaims
}

// IsAdministrator reports whether the caller bypasses course grants.
func (c *JWTClaims) IsAdministrator() bool {
	return c != nil && c.Role == RoleAdministrator
}
