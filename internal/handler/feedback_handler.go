package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-portal-api/internal/dto"
	"github.com/noah-isme/curriculum-portal-api/internal/middleware"
	"github.com/noah-isme/curriculum-portal-api/internal/models"
	"github.com/noah-isme/curriculum-portal-api/internal/service"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
	"github.com/noah-isme/curriculum-portal-api/pkg/response"
)

type feedbackService interface {
	Questions(ctx context.Context) ([]models.FeedbackQuestion, error)
	Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitFeedbackRequest) (*dto.SubmitFeedbackResponse, error)
	Analyze(ctx context.Context, subjectID string) (*dto.FeedbackAnalysisResponse, error)
	Export(ctx context.Context, subjectID, format string) (*service.ExportFile, error)
}

// FeedbackHandler serves the feedback form and its per-subject analysis.
type FeedbackHandler struct {
	service feedbackService
}

// NewFeedbackHandler builds a feedback handler.
func NewFeedbackHandler(service feedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// Form godoc
// @Summary Active feedback questions
// @Tags Feedback
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /feedback/form [get]
func (h *FeedbackHandler) Form(c *gin.Context) {
	questions, err := h.service.Questions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, questions)
}

// Submit godoc
// @Summary Submit feedback for a subject
// @Tags Feedback
// @Accept json
// @Produce json
// @Param payload body dto.SubmitFeedbackRequest true "Answers"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /feedback/form [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req dto.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}
	res, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusCreated, res.Message, res)
}

// Analysis godoc
// @Summary Feedback analysis of a subject
// @Tags Feedback
// @Produce json
// @Param commonId path string true "Subject common ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /feedback/analysis/{commonId} [get]
func (h *FeedbackHandler) Analysis(c *gin.Context) {
	analysis, err := h.service.Analyze(c.Request.Context(), c.Param("commonId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, analysis.Cached)
	meta := middleware.ExtractMeta(c)
	if analysis.Message != "" {
		meta["message"] = analysis.Message
	}
	response.JSON(c, http.StatusOK, analysis.Questions, meta)
}

// Export godoc
// @Summary Download feedback analysis
// @Tags Feedback
// @Produce text/csv
// @Produce application/pdf
// @Param commonId path string true "Subject common ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /feedback/analysis/{commonId}/export [get]
func (h *FeedbackHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.Param("commonId"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
