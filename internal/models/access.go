package models

import "time"

// AccessLevel is a user's permission on one course.
type AccessLevel string

const (
	AccessHead AccessLevel = "head"
	AccessEdit AccessLevel = "edit"
	AccessView AccessLevel = "view"
)

var accessRank = map[AccessLevel]int{
	AccessView: 1,
	AccessEdit: 2,
	AccessHead: 3,
}

// Valid reports whether l is a known level.
func (l AccessLevel) Valid() bool {
	_, ok := accessRank[l]
	return ok
}

// Allows reports whether l grants at least required.
func (l AccessLevel) Allows(required AccessLevel) bool {
	return accessRank[l] > 0 && accessRank[l] >= accessRank[required]
}

// AccessGrant links a user to a course. A user holds at most one grant per course.
type AccessGrant struct {
	UserID    string      `db:"user_id" json:"userId"`
	CourseID  string      `db:"course_id" json:"courseId"`
	Access    AccessLevel `db:"access" json:"access"`
	GrantedBy string      `db:"granted_by" json:"grantedBy"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`
}

// CourseAccess is a grant as seen from the user side.
type CourseAccess struct {
	CourseID string      `db:"course_id" json:"id"`
	Title    string      `db:"title" json:"title"`
	Access   AccessLevel `db:"access" json:"access"`
}

// CourseMember is a grant joined with the user it belongs to.
type CourseMember struct {
	UserID string      `db:"user_id" json:"userId"`
	Name   string      `db:"name" json:"name"`
	Email  string      `db:"email" json:"email"`
	Role   UserRole    `db:"role" json:"role"`
	Access AccessLevel `db:"access" json:"access"`
}
