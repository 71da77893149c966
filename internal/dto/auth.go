package dto

import "github.com/noah-isme/curriculum-portal-api/internal/models"

// CurrentUserResponse describes the caller and the courses they can open.
type CurrentUserResponse struct {
	User            models.UserInfo       `json:"user"`
	AccessedCourses []models.CourseAccess `json:"accessedCourses"`
}
