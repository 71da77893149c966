package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-portal-api/internal/dto"
	"github.com/noah-isme/curriculum-portal-api/internal/service"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
)

type aiServiceMock struct {
	err       error
	model     string
	generated string
}

func (m *aiServiceMock) Chat(ctx context.Context, req dto.ChatRequest) (*dto.AIReply, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.AIReply{Reply: "echo: " + req.Message}, nil
}

func (m *aiServiceMock) Compare(ctx context.Context, model, generated service.Upload) (*dto.AIReply, error) {
	a, _ := io.ReadAll(model.Reader)
	b, _ := io.ReadAll(generated.Reader)
	m.model, m.generated = string(a), string(b)
	return &dto.AIReply{Reply: "## Similarity Score: 80%"}, m.err
}

func (m *aiServiceMock) AnalyzeFeedback(ctx context.Context, req dto.AnalyzeFeedbackRequest) (*dto.FeedbackAnalysis, error) {
	if m.err != nil {
		return nil, m.err
	}
	return service.ParseAnalysis(`{"executiveSummary":"fine"}`), nil
}

func multipartRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for field, content := range files {
		part, err := writer.CreateFormFile(field, field+".pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	req, _ := http.NewRequest(http.MethodPost, "/ai/compare", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestAIHandlerCompareReadsBothFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &aiServiceMock{}
	handler := NewAIHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, map[string]string{"modelPdf": "model", "generatedPdf": "generated"})

	handler.Compare(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "model", mockSvc.model)
	assert.Equal(t, "generated", mockSvc.generated)
	assert.Contains(t, w.Body.String(), "Similarity Score")
}

func TestAIHandlerCompareRequiresBothFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAIHandler(&aiServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, map[string]string{"modelPdf": "model"})

	handler.Compare(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "generatedPdf is required")
}

func TestAIHandlerChatNotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAIHandler(&aiServiceMock{err: appErrors.ErrAINotConfigured})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/ai/chat", bytes.NewBufferString(`{"message":"hi"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Chat(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrAINotConfigured.Code)
}

func TestAIHandlerAnalyzeFeedback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAIHandler(&aiServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/ai/analyze-feedback", bytes.NewBufferString(`{"feedbackTexts":["great labs"]}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.AnalyzeFeedback(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"executiveSummary":"fine"`)
	assert.Contains(t, w.Body.String(), `"criticalAlerts":[]`)
}
