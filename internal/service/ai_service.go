package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-portal-api/internal/dto"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
	"github.com/noah-isme/curriculum-portal-api/pkg/gemini"
	"github.com/noah-isme/curriculum-portal-api/pkg/pdftext"
	"github.com/noah-isme/curriculum-portal-api/pkg/storage"
)

const (
	chatSystemPrompt = "You are an AI assistant for a curriculum design portal. Answer questions related to curriculum design."

	comparePrompt = `I have two curriculum documents.
Document 1 (Model Curriculum):
%s

Document 2 (Generated Curriculum):
%s

Compare Document 2 against Document 1.

Please provide your response in the following format:

## Similarity Score: [Percentage]%%

## Key Differences
[List key differences here]

## Missing Topics
[List missing topics here]

## Suggestions for Improvement
[List suggestions here]

Focus on structure, key subjects, and learning outcomes. Use Markdown formatting for the entire response.`

	analysisSystemPrompt = `You analyse course feedback written by students. Reply with a single JSON object:
{"executiveSummary": string, "sentiment": {"positive": number, "neutral": number, "negative": number},
"aspectAnalysis": [{"aspect": string, "sentiment": "positive"|"neutral"|"negative", "score": number, "keyPoints": [string]}],
"actionableRecommendations": [string], "criticalAlerts": [string]}
Sentiment values are percentages adding up to 100. Scores range from 0 to 10.`
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

type pdfReader interface {
	Extract(path string) (string, error)
}

// PDFReaderFunc adapts a function to the PDF reader used by Compare.
type PDFReaderFunc func(path string) (string, error)

// Extract implements the reader.
func (f PDFReaderFunc) Extract(path string) (string, error) { return f(path) }

// Upload is a multipart file handed to Compare.
type Upload struct {
	Name   string
	Reader io.Reader
}

// AIService backs the curriculum assistant endpoints.
type AIService struct {
	generator Generator
	uploads   *storage.LocalStorage
	pdf       pdfReader
	maxChars  int
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAIService constructs the service. A nil generator makes every call fail
// with AI_NOT_CONFIGURED.
func NewAIService(generator Generator, uploads *storage.LocalStorage, pdf pdfReader, maxChars int, validate *validator.Validate, logger *zap.Logger) *AIService {
	if maxChars <= 0 {
		maxChars = 10000
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIService{generator: generator, uploads: uploads, pdf: pdf, maxChars: maxChars, validator: validate, logger: logger}
}

// Chat answers a curriculum design question.
func (s *AIService) Chat(ctx context.Context, req dto.ChatRequest) (*dto.AIReply, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "message is required")
	}
	reply, err := s.generate(ctx, gemini.Request{System: chatSystemPrompt, Prompt: req.Message})
	if err != nil {
		return nil, err
	}
	return &dto.AIReply{Reply: reply}, nil
}

// Compare stages both PDFs, extracts their text and asks for a markdown
// comparison report. Staged files are always removed.
func (s *AIService) Compare(ctx context.Context, model, generated Upload) (*dto.AIReply, error) {
	if s.generator == nil {
		return nil, appErrors.ErrAINotConfigured
	}
	if model.Reader == nil || generated.Reader == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "both model and generated PDFs are required")
	}

	modelText, err := s.stageAndExtract(model)
	if err != nil {
		return nil, err
	}
	generatedText, err := s.stageAndExtract(generated)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(comparePrompt, pdftext.Truncate(modelText, s.maxChars), pdftext.Truncate(generatedText, s.maxChars))
	reply, err := s.generate(ctx, gemini.Request{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	return &dto.AIReply{Reply: reply}, nil
}

func (s *AIService) stageAndExtract(upload Upload) (string, error) {
	name, err := s.uploads.Stage(upload.Name, upload.Reader)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s exceeds the upload size limit", upload.Name))
		}
		return "", appErrors.Internal(err, "failed to stage upload")
	}
	defer func() {
		if err := s.uploads.Delete(name); err != nil {
			s.logger.Warn("failed to remove staged upload", zap.String("file", name), zap.Error(err))
		}
	}()

	text, err := s.pdf.Extract(s.uploads.Path(name))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("%s is not a readable PDF", upload.Name))
	}
	return text, nil
}

// AnalyzeFeedback asks the model for a structured sentiment report.
func (s *AIService) AnalyzeFeedback(ctx context.Context, req dto.AnalyzeFeedbackRequest) (*dto.FeedbackAnalysis, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "feedbackTexts must contain at least one entry")
	}
	var b strings.Builder
	b.WriteString("Feedback entries:\n")
	for i, text := range req.FeedbackTexts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(text))
	}
	reply, err := s.generate(ctx, gemini.Request{
		System: analysisSystemPrompt,
		Prompt: pdftext.Truncate(b.String(), s.maxChars*2),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}
	return ParseAnalysis(reply), nil
}

func (s *AIService) generate(ctx context.Context, req gemini.Request) (string, error) {
	if s.generator == nil {
		return "", appErrors.ErrAINotConfigured
	}
	reply, err := s.generator.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, gemini.ErrNotConfigured) {
			return "", appErrors.ErrAINotConfigured
		}
		s.logger.Error("ai generation failed", zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "AI service request failed")
	}
	return reply, nil
}

// ParseAnalysis decodes a model reply, tolerating markdown code fences. A reply
// that is not valid JSON becomes the executive summary of an otherwise empty
// analysis.
func ParseAnalysis(reply string) *dto.FeedbackAnalysis {
	var analysis dto.FeedbackAnalysis
	if err := json.Unmarshal([]byte(stripFences(reply)), &analysis); err != nil {
		return &dto.FeedbackAnalysis{
			ExecutiveSummary:          strings.TrimSpace(reply),
			AspectAnalysis:            []dto.AspectAnalysis{},
			ActionableRecommendations: []string{},
			CriticalAlerts:            []string{},
		}
	}
	if analysis.AspectAnalysis == nil {
		analysis.AspectAnalysis = []dto.AspectAnalysis{}
	}
	if analysis.ActionableRecommendations == nil {
		analysis.ActionableRecommendations = []string{}
	}
	if analysis.CriticalAlerts == nil {
		analysis.CriticalAlerts = []string{}
	}
	return &analysis
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
