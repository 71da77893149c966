package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/curriculum-portal-api/internal/models"
)

// AccessRepository stores per-course grants.
type AccessRepository struct {
	db *sqlx.DB
}

// NewAccessRepository constructs the repository.
func NewAccessRepository(db *sqlx.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

// Get returns the grant a user holds on a course.
func (r *AccessRepository) Get(ctx context.Context, userID, courseID string) (*models.AccessGrant, error) {
	const query = `SELECT user_id, course_id, access, granted_by, created_at, updated_at
	FROM course_access WHERE user_id = $1 AND course_id = $2`
	var grant models.AccessGrant
	if err := r.db.GetContext(ctx, &grant, query, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get course access: %w", err)
	}
	return &grant, nil
}

// Upsert creates a grant or changes the level of the existing one.
func (r *AccessRepository) Upsert(ctx context.Context, grant *models.AccessGrant) error {
	return upsertGrant(ctx, r.db, grant)
}

// Delete removes a grant. sql.ErrNoRows is returned when none existed.
func (r *AccessRepository) Delete(ctx context.Context, userID, courseID string) error {
	const query = `DELETE FROM course_access WHERE user_id = $1 AND course_id = $2`
	res, err := r.db.ExecContext(ctx, query, userID, courseID)
	if err != nil {
		return fmt.Errorf("delete course access: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete course access: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListMembers returns every user holding a grant on the course.
func (r *AccessRepository) ListMembers(ctx context.Context, courseID string) ([]models.CourseMember, error) {
	const query = `SELECT u.id AS user_id, u.name, u.email, u.role, a.access
	FROM course_access a JOIN users u ON u.id = a.user_id
	WHERE a.course_id = $1 ORDER BY a.created_at`
	members := make([]models.CourseMember, 0)
	if err := r.db.SelectContext(ctx, &members, query, courseID); err != nil {
		return nil, fmt.Errorf("list course members: %w", err)
	}
	return members, nil
}

// ListForUser returns the courses a user can access with their titles.
func (r *AccessRepository) ListForUser(ctx context.Context, userID string) ([]models.CourseAccess, error) {
	const query = `SELECT a.course_id, COALESCE(c.fields->'title'->'cur'->>0, '') AS title, a.access
	FROM course_access a JOIN records c ON c.kind = 'course' AND c.common_id = a.course_id
	WHERE a.user_id = $1 ORDER BY a.created_at`
	courses := make([]models.CourseAccess, 0)
	if err := r.db.SelectContext(ctx, &courses, query, userID); err != nil {
		return nil, fmt.Errorf("list user courses: %w", err)
	}
	return courses, nil
}

func upsertGrant(ctx context.Context, db sqlx.ExtContext, grant *models.AccessGrant) error {
	now := time.Now().UTC()
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = now
	}
	grant.UpdatedAt = now
	const query = `INSERT INTO course_access (user_id, course_id, access, granted_by, created_at, updated_at)
	VALUES (:user_id, :course_id, :access, :granted_by, :created_at, :updated_at)
	ON CONFLICT (user_id, course_id) DO UPDATE SET access = EXCLUDED.access, granted_by = EXCLUDED.granted_by, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, db, query, grant); err != nil {
		return fmt.Errorf("upsert course access: %w", err)
	}
	return nil
}
