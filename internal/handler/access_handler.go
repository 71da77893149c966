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

type accessService interface {
	ListMembers(ctx context.Context, actor *models.JWTClaims, courseID string) ([]models.CourseMember, error)
	AddUser(ctx context.Context, actor *models.JWTClaims, courseID string, req dto.AddCourseUserRequest) (*models.AccessGrant, error)
	RemoveUser(ctx context.Context, actor *models.JWTClaims, courseID, userID string) error
}

// AccessHandler manages who can open, edit and review a course.
type AccessHandler struct {
	service accessService
}

// NewAccessHandler builds an access handler.
func NewAccessHandler(service accessService) *AccessHandler {
	return &AccessHandler{service: service}
}

// List godoc
// @Summary List course members
// @Tags Course Access
// @Produce json
// @Param commonId path string true "Course common ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{commonId}/users [get]
func (h *AccessHandler) List(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context(), claimsFromContext(c), c.Param("commonId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members)
}

// Add godoc
// @Summary Grant or change course access
// @Tags Course Access
// @Accept json
// @Produce json
// @Param commonId path string true "Course common ID"
// @Param payload body dto.AddCourseUserRequest true "Grant"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{commonId}/users [post]
func (h *AccessHandler) Add(c *gin.Context) {
	var req dto.AddCourseUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid access payload"))
		return
	}
	grant, err := h.service.AddUser(c.Request.Context(), claimsFromContext(c), c.Param("commonId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grant)
}

// Remove godoc
// @Summary Revoke course access
// @Tags Course Access
// @Param commonId path string true "Course common ID"
// @Param userId path string true "User ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /courses/{commonId}/users/{userId} [delete]
func (h *AccessHandler) Remove(c *gin.Context) {
	if err := h.service.RemoveUser(c.Request.Context(), claimsFromContext(c), c.Param("commonId"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
