package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-portal-api/internal/dto"
	"github.com/noah-isme/curriculum-portal-api/internal/service"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
	"github.com/noah-isme/curriculum-portal-api/pkg/response"
)

type aiService interface {
	Chat(ctx context.Context, req dto.ChatRequest) (*dto.AIReply, error)
	Compare(ctx context.Context, model, generated service.Upload) (*dto.AIReply, error)
	AnalyzeFeedback(ctx context.Context, req dto.AnalyzeFeedbackRequest) (*dto.FeedbackAnalysis, error)
}

// AIHandler exposes the curriculum assistant.
type AIHandler struct {
	service aiService
}

// NewAIHandler builds an AI handler.
func NewAIHandler(service aiService) *AIHandler {
	return &AIHandler{service: service}
}

// Chat godoc
// @Summary Ask the curriculum assistant
// @Tags AI
// @Accept json
// @Produce json
// @Param payload body dto.ChatRequest true "Question"
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /ai/chat [post]
func (h *AIHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid chat payload"))
		return
	}
	reply, err := h.service.Chat(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reply)
}

// Compare godoc
// @Summary Compare a generated curriculum with a model curriculum
// @Tags AI
// @Accept mpfd
// @Produce json
// @Param modelPdf formData file true "Model curriculum PDF"
// @Param generatedPdf formData file true "Generated curriculum PDF"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /ai/compare [post]
func (h *AIHandler) Compare(c *gin.Context) {
	model, closeModel, err := openUpload(c, "modelPdf")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeModel()
	generated, closeGenerated, err := openUpload(c, "generatedPdf")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeGenerated()

	reply, err := h.service.Compare(c.Request.Context(), model, generated)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reply)
}

// AnalyzeFeedback godoc
// @Summary Sentiment report over descriptive feedback
// @Tags AI
// @Accept json
// @Produce json
// @Param payload body dto.AnalyzeFeedbackRequest true "Feedback texts"
// @Success 200 {object} response.Envelope
// @Router /ai/analyze-feedback [post]
func (h *AIHandler) AnalyzeFeedback(c *gin.Context) {
	var req dto.AnalyzeFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid analysis payload"))
		return
	}
	analysis, err := h.service.AnalyzeFeedback(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analysis)
}

func openUpload(c *gin.Context, field string) (service.Upload, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		return service.Upload{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, field+" is required")
	}
	file, err := header.Open()
	if err != nil {
		return service.Upload{}, nil, appErrors.Internal(err, "failed to open upload")
	}
	return service.Upload{Name: header.Filename, Reader: file}, func() { _ = file.Close() }, nil
}
