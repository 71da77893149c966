package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-portal-api/internal/dto"
	"github.com/noah-isme/curriculum-portal-api/internal/middleware"
	"github.com/noah-isme/curriculum-portal-api/internal/models"
	"github.com/noah-isme/curriculum-portal-api/internal/service"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
)

type feedbackServiceMock struct {
	analysis   *dto.FeedbackAnalysisResponse
	err        error
	submitted  dto.SubmitFeedbackRequest
	lastFormat string
}

func (m *feedbackServiceMock) Questions(ctx context.Context) ([]models.FeedbackQuestion, error) {
	return service.DefaultQuestions(), m.err
}

func (m *feedbackServiceMock) Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitFeedbackRequest) (*dto.SubmitFeedbackResponse, error) {
	m.submitted = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.SubmitFeedbackResponse{Message: "Feedback Accepted", DataSent: []models.FeedbackResponse{}}, nil
}

func (m *feedbackServiceMock) Analyze(ctx context.Context, subjectID string) (*dto.FeedbackAnalysisResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.analysis, nil
}

func (m *feedbackServiceMock) Export(ctx context.Context, subjectID, format string) (*service.ExportFile, error) {
	m.lastFormat = format
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Filename: "feedback-" + subjectID + ".csv", ContentType: "text/csv", Data: []byte("No,Type\n")}, nil
}

func TestFeedbackHandlerAnalysisEmptyCatalogMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &feedbackServiceMock{analysis: &dto.FeedbackAnalysisResponse{
		SubjectID: "s1",
		Questions: []models.QuestionSummary{},
		Message:   service.EmptyCatalogMessage,
	}}
	handler := NewFeedbackHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/feedback/analysis/s1", nil)
	c.Params = gin.Params{{Key: "commonId", Value: "s1"}}

	handler.Analysis(c)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []models.QuestionSummary `json:"data"`
		Meta map[string]interface{}   `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, service.EmptyCatalogMessage, body.Meta["message"])
	assert.Equal(t, false, body.Meta["cacheHit"])
}

func TestFeedbackHandlerAnalysisInvalidSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewFeedbackHandler(&feedbackServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "invalid subject id")})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/feedback/analysis/nope", nil)
	c.Params = gin.Params{{Key: "commonId", Value: "nope"}}

	handler.Analysis(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &feedbackServiceMock{}
	handler := NewFeedbackHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"subjectId":"4f0c1b7e-8a9d-4c3b-9b1e-2f6d7a8c9e01","answers":[{"questionNo":1,"questionType":"rate","value":4},{"questionNo":3,"questionType":"true/false","value":true}]}`
	c.Request, _ = http.NewRequest(http.MethodPost, "/feedback/form", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "Feedback Accepted")
	require.Len(t, mockSvc.submitted.Answers, 2)
	assert.Equal(t, dto.AnswerValue("4"), mockSvc.submitted.Answers[0].Value)
	assert.Equal(t, dto.AnswerValue("true"), mockSvc.submitted.Answers[1].Value)
}

func TestFeedbackHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &feedbackServiceMock{}
	handler := NewFeedbackHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/feedback/analysis/s1/export?format=csv", nil)
	c.Params = gin.Params{{Key: "commonId", Value: "s1"}}

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", mockSvc.lastFormat)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="feedback-s1.csv"`)
}
