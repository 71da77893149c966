package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-portal-api/internal/dto"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
	"github.com/noah-isme/curriculum-portal-api/pkg/gemini"
	"github.com/noah-isme/curriculum-portal-api/pkg/storage"
)

type stubGenerator struct {
	reply    string
	err      error
	requests []gemini.Request
}

func (s *stubGenerator) Generate(ctx context.Context, req gemini.Request) (string, error) {
	s.requests = append(s.requests, req)
	return s.reply, s.err
}

func newAIFixture(t *testing.T, gen Generator, reader PDFReaderFunc, maxBytes int64) (*AIService, string) {
	t.Helper()
	dir := t.TempDir()
	uploads, err := storage.NewLocalStorage(dir, maxBytes)
	require.NoError(t, err)
	return NewAIService(gen, uploads, reader, 20, validator.New(), zap.NewNop()), dir
}

func TestChatSendsSystemPrompt(t *testing.T) {
	gen := &stubGenerator{reply: "Use Bloom's taxonomy."}
	svc, _ := newAIFixture(t, gen, nil, 0)

	reply, err := svc.Chat(context.Background(), dto.ChatRequest{Message: "How to write outcomes?"})
	require.NoError(t, err)
	assert.Equal(t, "Use Bloom's taxonomy.", reply.Reply)
	require.Len(t, gen.requests, 1)
	assert.Equal(t, chatSystemPrompt, gen.requests[0].System)
	assert.Equal(t, "How to write outcomes?", gen.requests[0].Prompt)
}

func TestChatErrors(t *testing.T) {
	svc, _ := newAIFixture(t, nil, nil, 0)
	_, err := svc.Chat(context.Background(), dto.ChatRequest{Message: "hi"})
	assert.Equal(t, appErrors.ErrAINotConfigured.Code, appErrors.FromError(err).Code)

	svc, _ = newAIFixture(t, &stubGenerator{}, nil, 0)
	_, err = svc.Chat(context.Background(), dto.ChatRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	svc, _ = newAIFixture(t, &stubGenerator{err: errors.New("quota")}, nil, 0)
	_, err = svc.Chat(context.Background(), dto.ChatRequest{Message: "hi"})
	assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)
}

func TestCompareTruncatesAndCleansUp(t *testing.T) {
	gen := &stubGenerator{reply: "## Similarity Score: 80%"}
	texts := map[string]string{}
	reader := func(path string) (string, error) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		texts[path] = string(raw)
		return strings.Repeat(string(raw), 10), nil
	}
	svc, dir := newAIFixture(t, gen, reader, 1024)

	reply, err := svc.Compare(context.Background(),
		Upload{Name: "model.pdf", Reader: strings.NewReader("MODEL")},
		Upload{Name: "generated.pdf", Reader: strings.NewReader("GEN")},
	)
	require.NoError(t, err)
	assert.Equal(t, "## Similarity Score: 80%", reply.Reply)
	assert.Len(t, texts, 2)

	require.Len(t, gen.requests, 1)
	prompt := gen.requests[0].Prompt
	assert.Contains(t, prompt, strings.Repeat("MODEL", 4)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("MODEL", 5))
	assert.Contains(t, prompt, "## Similarity Score: [Percentage]%")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCompareRejectsUnreadableAndOversized(t *testing.T) {
	reader := func(path string) (string, error) { return "", errors.New("malformed pdf") }
	svc, dir := newAIFixture(t, &stubGenerator{}, reader, 4)

	_, err := svc.Compare(context.Background(),
		Upload{Name: "model.pdf", Reader: strings.NewReader("abc")},
		Upload{Name: "generated.pdf", Reader: strings.NewReader("abc")},
	)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Compare(context.Background(),
		Upload{Name: "model.pdf", Reader: strings.NewReader("way too large")},
		Upload{Name: "generated.pdf", Reader: strings.NewReader("abc")},
	)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Compare(context.Background(), Upload{Name: "model.pdf"}, Upload{Name: "generated.pdf", Reader: strings.NewReader("abc")})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyzeFeedbackParsesFencedJSON(t *testing.T) {
	gen := &stubGenerator{reply: "```json\n{\"executiveSummary\":\"Mostly positive\",\"sentiment\":{\"positive\":70,\"neutral\":20,\"negative\":10},\"aspectAnalysis\":[{\"aspect\":\"Pace\",\"sentiment\":\"negative\",\"score\":3,\"keyPoints\":[\"too fast\"]}]}\n```"}
	svc, _ := newAIFixture(t, gen, nil, 0)

	analysis, err := svc.AnalyzeFeedback(context.Background(), dto.AnalyzeFeedbackRequest{FeedbackTexts: []string{"too fast", "great labs"}})
	require.NoError(t, err)
	assert.Equal(t, "Mostly positive", analysis.ExecutiveSummary)
	assert.Equal(t, 70.0, analysis.Sentiment.Positive)
	require.Len(t, analysis.AspectAnalysis, 1)
	assert.Equal(t, "Pace", analysis.AspectAnalysis[0].Aspect)
	assert.NotNil(t, analysis.CriticalAlerts)

	require.Len(t, gen.requests, 1)
	assert.True(t, gen.requests[0].JSON)
	assert.Contains(t, gen.requests[0].Prompt, "1. too fast")

	_, err = svc.AnalyzeFeedback(context.Background(), dto.AnalyzeFeedbackRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestParseAnalysisFallback(t *testing.T) {
	analysis := ParseAnalysis("The students liked the course.")
	assert.Equal(t, "The students liked the course.", analysis.ExecutiveSummary)
	assert.Empty(t, analysis.AspectAnalysis)
	assert.NotNil(t, analysis.ActionableRecommendations)

	inline := ParseAnalysis("```json{\"executiveSummary\":\"ok\"}```")
	assert.Equal(t, "ok", inline.ExecutiveSummary)
}
