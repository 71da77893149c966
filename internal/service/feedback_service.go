package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-portal-api/internal/dto"
	"github.com/noah-isme/curriculum-portal-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
	"github.com/noah-isme/curriculum-portal-api/pkg/export"
)

// ErrNotANumber is returned by ParseNumber for values without a numeric reading.
var ErrNotANumber = errors.New("value is not a number")

// EmptyCatalogMessage accompanies an analysis when no questions are configured.
const EmptyCatalogMessage = "no feedback questions are configured"

type feedbackStore interface {
	ListQuestions(ctx context.Context, activeOnly bool) ([]models.FeedbackQuestion, error)
	ReplaceQuestions(ctx context.Context, questions []models.FeedbackQuestion) error
	InsertResponses(ctx context.Context, responses []models.FeedbackResponse) error
	ListResponses(ctx context.Context, subjectID string) ([]models.FeedbackResponse, error)
}

type tableRenderer interface {
	ContentType() string
	Extension() string
	Render(table export.Table) ([]byte, error)
}

// ExportFile is a rendered analysis ready to be downloaded.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FeedbackService serves the feedback form and its per-subject analysis.
type FeedbackService struct {
	store     feedbackStore
	cache     *CacheService
	cacheTTL  time.Duration
	renderers map[string]tableRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeedbackService constructs the service. cache may be nil.
func NewFeedbackService(store feedbackStore, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		renderers: map[string]tableRenderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(15, 30, 90, 20, 35),
		},
		validator: validate,
		logger:    logger,
	}
}

// AnalysisCacheKey is the cache key of a subject's analysis.
func AnalysisCacheKey(subjectID string) string {
	return "feedback:analysis:" + subjectID
}

// Questions returns the active catalog ordered by question number.
func (s *FeedbackService) Questions(ctx context.Context) ([]models.FeedbackQuestion, error) {
	questions, err := s.store.ListQuestions(ctx, true)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load feedback questions")
	}
	return questions, nil
}

// ReplaceQuestions swaps the catalog wholesale.
func (s *FeedbackService) ReplaceQuestions(ctx context.Context, questions []models.FeedbackQuestion) error {
	seen := make(map[int]struct{}, len(questions))
	for _, q := range questions {
		if q.QuestionNo <= 0 || strings.TrimSpace(q.Question) == "" || !q.QuestionType.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid question %d", q.QuestionNo))
		}
		if _, dup := seen[q.QuestionNo]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate question number %d", q.QuestionNo))
		}
		seen[q.QuestionNo] = struct{}{}
	}
	if err := s.store.ReplaceQuestions(ctx, questions); err != nil {
		return appErrors.Internal(err, "failed to replace feedback questions")
	}
	if s.cache != nil {
		_ = s.cache.InvalidatePattern(ctx, AnalysisCacheKey("*"))
	}
	return nil
}

// Submit stores one answered form. Every answer must refer to an active
// question with a matching type.
func (s *FeedbackService) Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitFeedbackRequest) (*dto.SubmitFeedbackResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}
	questions, err := s.store.ListQuestions(ctx, true)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load feedback questions")
	}
	catalog := make(map[int]models.FeedbackQuestion, len(questions))
	for _, q := range questions {
		catalog[q.QuestionNo] = q
	}

	responses := make([]models.FeedbackResponse, 0, len(req.Answers))
	answered := make(map[int]struct{}, len(req.Answers))
	for _, ans := range req.Answers {
		q, ok := catalog[ans.QuestionNo]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d does not exist", ans.QuestionNo))
		}
		if _, dup := answered[ans.QuestionNo]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d answered twice", ans.QuestionNo))
		}
		answered[ans.QuestionNo] = struct{}{}
		if err := checkAnswer(q, ans); err != nil {
			return nil, err
		}
		responses = append(responses, models.FeedbackResponse{
			SubjectID:    req.SubjectID,
			RespondentID: actor.UserID,
			QuestionNo:   ans.QuestionNo,
			QuestionType: q.QuestionType,
			Value:        strings.TrimSpace(string(ans.Value)),
		})
	}

	if err := s.store.InsertResponses(ctx, responses); err != nil {
		return nil, appErrors.Internal(err, "failed to store feedback")
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, AnalysisCacheKey(req.SubjectID))
	}
	s.logger.Info("feedback submitted", zap.String("subjectId", req.SubjectID), zap.Int("answers", len(responses)))
	return &dto.SubmitFeedbackResponse{Message: "Feedback Accepted", DataSent: responses}, nil
}

func checkAnswer(q models.FeedbackQuestion, ans dto.FeedbackAnswer) error {
	if ans.QuestionType != q.QuestionType {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d expects a %s answer", q.QuestionNo, q.QuestionType))
	}
	value := strings.TrimSpace(string(ans.Value))
	switch q.QuestionType {
	case models.QuestionRate:
		n, err := ParseNumber(value)
		if err != nil || n < 1 || n > 5 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d expects a rating from 1 to 5", q.QuestionNo))
		}
	case models.QuestionTrueFalse:
		if n, err := ParseNumber(value); err != nil || (n != 0 && n != 1) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d expects true or false", q.QuestionNo))
		}
	case models.QuestionSelect:
		if len(q.Options) > 0 && !containsFold(q.Options, value) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d expects one of %s", q.QuestionNo, strings.Join(q.Options, ", ")))
		}
	}
	return nil
}

func containsFold(options []string, value string) bool {
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), value) {
			return true
		}
	}
	return false
}

// Analyze summarises every catalog question for a subject. Results are cached
// until the next submission for the subject.
func (s *FeedbackService) Analyze(ctx context.Context, subjectID string) (*dto.FeedbackAnalysisResponse, error) {
	if _, err := uuid.Parse(subjectID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid subject id")
	}

	key := AnalysisCacheKey(subjectID)
	var cached dto.FeedbackAnalysisResponse
	if s.cache != nil && s.cache.Get(ctx, key, &cached) {
		cached.Cached = true
		return &cached, nil
	}

	questions, err := s.store.ListQuestions(ctx, false)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load feedback questions")
	}
	resp := &dto.FeedbackAnalysisResponse{SubjectID: subjectID, Questions: []models.QuestionSummary{}}
	if len(questions) == 0 {
		resp.Message = EmptyCatalogMessage
		return resp, nil
	}

	responses, err := s.store.ListResponses(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load feedback responses")
	}
	resp.Questions = Aggregate(questions, responses)

	if s.cache != nil {
		s.cache.Set(ctx, key, resp, s.cacheTTL)
	}
	return resp, nil
}

// Export renders the analysis of a subject as csv or pdf.
func (s *FeedbackService) Export(ctx context.Context, subjectID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	analysis, err := s.Analyze(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	data, err := renderer.Render(analysisTable(analysis))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render feedback analysis")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("feedback-%s.%s", subjectID, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func analysisTable(analysis *dto.FeedbackAnalysisResponse) export.Table {
	table := export.Table{
		Title:   "Feedback analysis",
		Notes:   []string{"Subject: " + analysis.SubjectID},
		Headers: []string{"No", "Type", "Question", "Responses", "Average / Answers"},
	}
	if analysis.Message != "" {
		table.Notes = append(table.Notes, analysis.Message)
	}
	for _, q := range analysis.Questions {
		summary := strings.Join(q.TextResponses, " | ")
		if q.QuestionType.Numeric() {
			summary = strconv.FormatFloat(q.AverageValue, 'f', 2, 64)
		}
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(q.QuestionNo),
			string(q.QuestionType),
			q.QuestionText,
			strconv.Itoa(q.TotalResponses),
			summary,
		})
	}
	return table
}

// Aggregate folds responses onto the catalog. Every catalog question yields a
// summary in catalog order; responses to unknown questions are ignored.
// Numeric answers that do not parse count as zero.
func Aggregate(catalog []models.FeedbackQuestion, responses []models.FeedbackResponse) []models.QuestionSummary {
	type bucket struct {
		sum   float64
		count int
		texts []string
	}
	buckets := make(map[int]*bucket, len(catalog))
	for _, r := range responses {
		b, ok := buckets[r.QuestionNo]
		if !ok {
			b = &bucket{}
			buckets[r.QuestionNo] = b
		}
		b.count++
		b.sum += NumberOrZero(r.Value)
		b.texts = append(b.texts, r.Value)
	}

	out := make([]models.QuestionSummary, 0, len(catalog))
	for _, q := range catalog {
		summary := models.QuestionSummary{
			QuestionNo:    q.QuestionNo,
			QuestionType:  q.QuestionType,
			QuestionText:  q.Question,
			TextResponses: []string{},
		}
		if b, ok := buckets[q.QuestionNo]; ok {
			summary.TotalResponses = b.count
			if q.QuestionType.Numeric() {
				summary.AverageValue = b.sum / float64(b.count)
			} else {
				summary.TextResponses = b.texts
			}
		}
		out = append(out, summary)
	}
	return out
}

// ParseNumber reads integers, decimals and the booleans true/false/yes/no
// (as 1 and 0). NaN and infinities are rejected.
func ParseNumber(value string) (float64, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "true", "yes":
		return 1, nil
	case "false", "no":
		return 0, nil
	case "":
		return 0, ErrNotANumber
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%q: %w", value, ErrNotANumber)
	}
	return n, nil
}

// NumberOrZero is ParseNumber with unparseable values counted as zero.
func NumberOrZero(value string) float64 {
	n, err := ParseNumber(value)
	if err != nil {
		return 0
	}
	return n
}

// DefaultQuestions is the catalog installed by the seed command.
func DefaultQuestions() []models.FeedbackQuestion {
	q := func(no int, text string, t models.QuestionType) models.FeedbackQuestion {
		return models.FeedbackQuestion{QuestionNo: no, Question: text, QuestionType: t, Options: []string{}, IsActive: true}
	}
	return []models.FeedbackQuestion{
		q(1, "How would you rate the difficulty level of this course?", models.QuestionRate),
		q(2, "Are you satisfied with the course content?", models.QuestionTrueFalse),
		q(3, "How interested are you in the course material?", models.QuestionRate),
		q(4, "How relevant is this course to your career goals?", models.QuestionRate),
		q(5, "What aspects of the course did you find most challenging?", models.QuestionDescriptive),
		q(6, "How would you rate the teaching methodology?", models.QuestionRate),
		q(7, "What improvements would you suggest for this course?", models.QuestionDescriptive),
	}
}
