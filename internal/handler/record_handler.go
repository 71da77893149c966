package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-portal-api/internal/dto"
	"github.com/noah-isme/curriculum-portal-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
	"github.com/noah-isme/curriculum-portal-api/pkg/response"
)

type recordService interface {
	CreateCourse(ctx context.Context, actor *models.JWTClaims, req dto.CreateCourseRequest) (*dto.RecordResponse, error)
	CreateSubject(ctx context.Context, actor *models.JWTClaims, courseID string, req dto.CreateSubjectRequest) (*dto.RecordResponse, error)
	Get(ctx context.Context, actor *models.JWTClaims, kind models.RecordKind, commonID string) (*dto.RecordResponse, error)
	ListCourses(ctx context.Context, actor *models.JWTClaims) ([]dto.RecordResponse, error)
	ListSubjects(ctx context.Context, actor *models.JWTClaims, courseID string) ([]dto.RecordResponse, error)
	Versions(ctx context.Context, actor *models.JWTClaims, kind models.RecordKind, commonID string) ([]models.RecordVersion, error)
	Propose(ctx context.Context, actor *models.JWTClaims, kind models.RecordKind, commonID string, req dto.ProposeUpdateRequest) (*dto.RecordResponse, error)
	Accept(ctx context.Context, actor *models.JWTClaims, kind models.RecordKind, commonID string, req dto.ResolveUpdateRequest) (*dto.RecordResponse, error)
	Reject(ctx context.Context, actor *models.JWTClaims, kind models.RecordKind, commonID string, req dto.ResolveUpdateRequest) (*dto.RecordResponse, error)
}

// RecordHandler exposes courses and subjects with their review queues.
type RecordHandler struct {
	service recordService
}

// NewRecordHandler builds a record handler.
func NewRecordHandler(service recordService) *RecordHandler {
	return &RecordHandler{service: service}
}

// CreateCourse godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [post]
func (h *RecordHandler) CreateCourse(c *gin.Context) {
	var req dto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}
	record, err := h.service.CreateCourse(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ListCourses godoc
// @Summary List accessible courses
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *RecordHandler) ListCourses(c *gin.Context) {
	records, err := h.service.ListCourses(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records)
}

// CreateSubject godoc
// @Summary Create subject in a course
// @Tags Subjects
// @Accept json
// @Produce json
// @Param commonId path string true "Course common ID"
// @Param payload body dto.CreateSubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{commonId}/subjects [post]
func (h *RecordHandler) CreateSubject(c *gin.Context) {
	var req dto.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subject payload"))
		return
	}
	record, err := h.service.CreateSubject(c.Request.Context(), claimsFromContext(c), c.Param("commonId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ListSubjects godoc
// @Summary List subjects of a course
// @Tags Subjects
// @Produce json
// @Param commonId path string true "Course common ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{commonId}/subjects [get]
func (h *RecordHandler) ListSubjects(c *gin.Context) {
	records, err := h.service.ListSubjects(c.Request.Context(), claimsFromContext(c), c.Param("commonId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records)
}

// Get godoc
// @Summary Get course or subject
// @Tags Courses, Subjects
// @Produce json
// @Param commonId path string true "Common ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{commonId} [get]
// @Router /subjects/{commonId} [get]
func (h *RecordHandler) Get(kind models.RecordKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := h.service.Get(c.Request.Context(), claimsFromContext(c), kind, c.Param("commonId"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, record)
	}
}

// Versions godoc
// @Summary List accepted versions
// @Tags Courses, Subjects
// @Produce json
// @Param commonId path string true "Common ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{commonId}/versions [get]
// @Router /subjects/{commonId}/versions [get]
func (h *RecordHandler) Versions(kind models.RecordKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		versions, err := h.service.Versions(c.Request.Context(), claimsFromContext(c), kind, c.Param("commonId"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, versions)
	}
}

// Propose godoc
// @Summary Propose a change to an editable field
// @Tags Courses, Subjects
// @Accept json
// @Produce json
// @Param commonId path string true "Common ID"
// @Param payload body dto.ProposeUpdateRequest true "Proposal"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{commonId}/update-by-user [patch]
// @Router /subjects/{commonId}/update-by-user [patch]
func (h *RecordHandler) Propose(kind models.RecordKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.ProposeUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
			return
		}
		record, err := h.service.Propose(c.Request.Context(), claimsFromContext(c), kind, c.Param("commonId"), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, record)
	}
}

// Accept godoc
// @Summary Accept a pending change
// @Tags Courses, Subjects
// @Accept json
// @Produce json
// @Param commonId path string true "Common ID"
// @Param payload body dto.ResolveUpdateRequest true "Resolution"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{commonId}/accept-updates [patch]
// @Router /subjects/{commonId}/accept-updates [patch]
func (h *RecordHandler) Accept(kind models.RecordKind) gin.HandlerFunc {
	return h.resolve(kind, h.service.Accept)
}

// Reject godoc
// @Summary Reject a pending change
// @Tags Courses, Subjects
// @Accept json
// @Produce json
// @Param commonId path string true "Common ID"
// @Param payload body dto.ResolveUpdateRequest true "Resolution"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses/{commonId}/reject-updates [patch]
// @Router /subjects/{commonId}/reject-updates [patch]
func (h *RecordHandler) Reject(kind models.RecordKind) gin.HandlerFunc {
	return h.resolve(kind, h.service.Reject)
}

type resolveFunc func(ctx context.Context, actor *models.JWTClaims, kind models.RecordKind, commonID string, req dto.ResolveUpdateRequest) (*dto.RecordResponse, error)

func (h *RecordHandler) resolve(kind models.RecordKind, fn resolveFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.ResolveUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolution payload"))
			return
		}
		record, err := fn(c.Request.Context(), claimsFromContext(c), kind, c.Param("commonId"), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, record)
	}
}
