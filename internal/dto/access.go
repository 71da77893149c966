package dto

import "github.com/noah-isme/curriculum-portal-api/internal/models"

// AddCourseUserRequest grants or changes a user's access to a course.
type AddCourseUserRequest struct {
	UserID string             `json:"userId" validate:"required"`
	Access models.AccessLevel `json:"access" validate:"required,oneof=head edit view"`
}
