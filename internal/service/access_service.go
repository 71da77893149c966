package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-portal-api/internal/dto"
	"github.com/noah-isme/curriculum-portal-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
)

type accessStore interface {
	Get(ctx context.Context, userID, courseID string) (*models.AccessGrant, error)
	Upsert(ctx context.Context, grant *models.AccessGrant) error
	Delete(ctx context.Context, userID, courseID string) error
	ListMembers(ctx context.Context, courseID string) ([]models.CourseMember, error)
	ListForUser(ctx context.Context, userID string) ([]models.CourseAccess, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AccessService manages per-course grants and answers permission checks.
type AccessService struct {
	store     accessStore
	users     userLookup
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccessService constructs the service.
func NewAccessService(store accessStore, users userLookup, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *AccessService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{store: store, users: users, notifier: notifier, validator: validate, logger: logger}
}

// Level returns the caller's access on a course. Administrators hold head
// everywhere; an empty level means no grant.
func (s *AccessService) Level(ctx context.Context, actor *models.JWTClaims, courseID string) (models.AccessLevel, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	if actor.IsAdministrator() {
		return models.AccessHead, nil
	}
	grant, err := s.store.Get(ctx, actor.UserID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", appErrors.Internal(err, "failed to load course access")
	}
	return grant.Access, nil
}

// Require fails with FORBIDDEN unless the caller holds at least required.
func (s *AccessService) Require(ctx context.Context, actor *models.JWTClaims, courseID string, required models.AccessLevel) error {
	level, err := s.Level(ctx, actor, courseID)
	if err != nil {
		return err
	}
	if !level.Allows(required) {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s access to this course is required", required))
	}
	return nil
}

// AddUser grants or changes a user's access to a course.
func (s *AccessService) AddUser(ctx context.Context, actor *models.JWTClaims, courseID string, req dto.AddCourseUserRequest) (*models.AccessGrant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid access payload")
	}
	if err := s.Require(ctx, actor, courseID, models.AccessHead); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}

	grant := &models.AccessGrant{
		UserID:    req.UserID,
		CourseID:  courseID,
		Access:    req.Access,
		GrantedBy: actor.UserID,
	}
	if err := s.store.Upsert(ctx, grant); err != nil {
		return nil, appErrors.Internal(err, "failed to save course access")
	}
	s.logger.Info("course access granted",
		zap.String("courseId", courseID),
		zap.String("userId", req.UserID),
		zap.String("access", string(req.Access)),
		zap.String("by", actor.UserID),
	)
	s.notify(ctx, models.Notification{
		UserID:  req.UserID,
		Heading: "Course access granted",
		Message: fmt.Sprintf("You now have %s access to a course.", req.Access),
		Link:    recordLink(models.RecordKindCourse, courseID),
	})
	return grant, nil
}

// RemoveUser revokes a user's grant. Callers cannot revoke their own access.
func (s *AccessService) RemoveUser(ctx context.Context, actor *models.JWTClaims, courseID, userID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if userID == actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot revoke your own access")
	}
	if err := s.Require(ctx, actor, courseID, models.AccessHead); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user has no access to this course")
		}
		return appErrors.Internal(err, "failed to revoke course access")
	}
	s.logger.Info("course access revoked", zap.String("courseId", courseID), zap.String("userId", userID), zap.String("by", actor.UserID))
	s.notify(ctx, models.Notification{
		UserID:  userID,
		Heading: "Course access removed",
		Message: "Your access to a course was removed.",
	})
	return nil
}

// ListMembers returns every user with access to the course.
func (s *AccessService) ListMembers(ctx context.Context, actor *models.JWTClaims, courseID string) ([]models.CourseMember, error) {
	if err := s.Require(ctx, actor, courseID, models.AccessView); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list course members")
	}
	return members, nil
}

// CoursesFor returns the courses userID can open.
func (s *AccessService) CoursesFor(ctx context.Context, userID string) ([]models.CourseAccess, error) {
	courses, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list accessible courses")
	}
	return courses, nil
}

func (s *AccessService) notify(ctx context.Context, n models.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("failed to notify user", zap.String("userId", n.UserID), zap.Error(err))
	}
}
