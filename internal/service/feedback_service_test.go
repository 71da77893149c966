package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-portal-api/internal/dto"
	"github.com/noah-isme/curriculum-portal-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
)

const subjectID = "7f1c8e3a-2b4d-4c6e-9a1b-3d5f7e9a1c2b"

type mockFeedbackStore struct {
	questions     []models.FeedbackQuestion
	responses     []models.FeedbackResponse
	listResponses int
}

func (m *mockFeedbackStore) ListQuestions(ctx context.Context, activeOnly bool) ([]models.FeedbackQuestion, error) {
	out := []models.FeedbackQuestion{}
	for _, q := range m.questions {
		if !activeOnly || q.IsActive {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *mockFeedbackStore) ReplaceQuestions(ctx context.Context, questions []models.FeedbackQuestion) error {
	m.questions = questions
	return nil
}

func (m *mockFeedbackStore) InsertResponses(ctx context.Context, responses []models.FeedbackResponse) error {
	m.responses = append(m.responses, responses...)
	return nil
}

func (m *mockFeedbackStore) ListResponses(ctx context.Context, subject string) ([]models.FeedbackResponse, error) {
	m.listResponses++
	out := []models.FeedbackResponse{}
	for _, r := range m.responses {
		if r.SubjectID == subject {
			out = append(out, r)
		}
	}
	return out, nil
}

type memoryCache struct {
	items map[string][]byte
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
	return nil
}

func scenarioCatalog() []models.FeedbackQuestion {
	return []models.FeedbackQuestion{
		{QuestionNo: 1, Question: "Difficulty", QuestionType: models.QuestionRate, IsActive: true},
		{QuestionNo: 2, Question: "Satisfied", QuestionType: models.QuestionTrueFalse, IsActive: true},
		{QuestionNo: 3, Question: "Comments", QuestionType: models.QuestionDescriptive, IsActive: true},
	}
}

func TestAggregateScenario(t *testing.T) {
	responses := []models.FeedbackResponse{
		{QuestionNo: 1, Value: "4"},
		{QuestionNo: 1, Value: "2"},
		{QuestionNo: 2, Value: "true"},
		{QuestionNo: 3, Value: "too fast"},
	}

	got := Aggregate(scenarioCatalog(), responses)
	require.Len(t, got, 3)

	assert.Equal(t, 1, got[0].QuestionNo)
	assert.Equal(t, 3.0, got[0].AverageValue)
	assert.Equal(t, 2, got[0].TotalResponses)
	assert.Empty(t, got[0].TextResponses)

	assert.Equal(t, 1.0, got[1].AverageValue)
	assert.Equal(t, 1, got[1].TotalResponses)

	assert.Equal(t, []string{"too fast"}, got[2].TextResponses)
	assert.Equal(t, 0.0, got[2].AverageValue)
	assert.Equal(t, 1, got[2].TotalResponses)
}

func TestAggregateZeroResponses(t *testing.T) {
	got := Aggregate(scenarioCatalog(), nil)
	require.Len(t, got, 3)
	for _, s := range got {
		assert.Zero(t, s.TotalResponses)
		assert.NotNil(t, s.TextResponses)
	}
}

func TestAggregateCoercesUnparseableToZero(t *testing.T) {
	got := Aggregate(scenarioCatalog()[:1], []models.FeedbackResponse{
		{QuestionNo: 1, Value: "5"},
		{QuestionNo: 1, Value: "n/a"},
		{QuestionNo: 9, Value: "ignored"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, 2.5, got[0].AverageValue)
	assert.Equal(t, 2, got[0].TotalResponses)
}

func TestAggregateStoredNonFiniteValuesStayEncodable(t *testing.T) {
	got := Aggregate(scenarioCatalog()[:1], []models.FeedbackResponse{
		{QuestionNo: 1, Value: "4"},
		{QuestionNo: 1, Value: "NaN"},
		{QuestionNo: 1, Value: "Inf"},
	})
	require.Len(t, got, 1)
	assert.InDelta(t, 4.0/3.0, got[0].AverageValue, 1e-9)

	_, err := json.Marshal(got)
	assert.NoError(t, err)
}

func TestParseNumber(t *testing.T) {
	cases := map[string]float64{"4": 4, " 2.5 ": 2.5, "true": 1, "False": 0, "yes": 1, "no": 0}
	for in, want := range cases {
		got, err := ParseNumber(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseNumber("great")
	assert.True(t, errors.Is(err, ErrNotANumber))
	_, err = ParseNumber("")
	assert.True(t, errors.Is(err, ErrNotANumber))
	for _, in := range []string{"NaN", "Inf", "-Inf", "+infinity"} {
		_, err = ParseNumber(in)
		assert.True(t, errors.Is(err, ErrNotANumber), in)
	}
	assert.Equal(t, 0.0, NumberOrZero("great"))
	assert.Equal(t, 0.0, NumberOrZero("NaN"))
	assert.Equal(t, 3.0, NumberOrZero("3"))
}

func newFeedbackFixture() (*FeedbackService, *mockFeedbackStore, *memoryCache) {
	store := &mockFeedbackStore{questions: scenarioCatalog()}
	mem := &memoryCache{items: map[string][]byte{}}
	cache := NewCacheService(mem, nil, time.Minute, zap.NewNop(), true)
	return NewFeedbackService(store, cache, time.Minute, validator.New(), zap.NewNop()), store, mem
}

func TestSubmitStoresAnswers(t *testing.T) {
	svc, store, _ := newFeedbackFixture()
	student := &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}

	resp, err := svc.Submit(context.Background(), student, dto.SubmitFeedbackRequest{
		SubjectID: subjectID,
		Answers: []dto.FeedbackAnswer{
			{QuestionNo: 1, QuestionType: models.QuestionRate, Value: "4"},
			{QuestionNo: 2, QuestionType: models.QuestionTrueFalse, Value: "true"},
			{QuestionNo: 3, QuestionType: models.QuestionDescriptive, Value: " too fast "},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Feedback Accepted", resp.Message)
	require.Len(t, store.responses, 3)
	assert.Equal(t, "s1", store.responses[0].RespondentID)
	assert.Equal(t, "too fast", store.responses[2].Value)
}

func TestSubmitRejectsInvalidAnswers(t *testing.T) {
	svc, store, _ := newFeedbackFixture()
	student := &models.JWTClaims{UserID: "s1"}
	ctx := context.Background()

	cases := []dto.SubmitFeedbackRequest{
		{SubjectID: "not-a-uuid", Answers: []dto.FeedbackAnswer{{QuestionNo: 1, QuestionType: models.QuestionRate, Value: "4"}}},
		{SubjectID: subjectID, Answers: []dto.FeedbackAnswer{{QuestionNo: 8, QuestionType: models.QuestionRate, Value: "4"}}},
		{SubjectID: subjectID, Answers: []dto.FeedbackAnswer{{QuestionNo: 1, QuestionType: models.QuestionDescriptive, Value: "4"}}},
		{SubjectID: subjectID, Answers: []dto.FeedbackAnswer{{QuestionNo: 1, QuestionType: models.QuestionRate, Value: "9"}}},
		{SubjectID: subjectID, Answers: []dto.FeedbackAnswer{{QuestionNo: 2, QuestionType: models.QuestionTrueFalse, Value: "maybe"}}},
		{SubjectID: subjectID, Answers: []dto.FeedbackAnswer{{QuestionNo: 1, QuestionType: models.QuestionRate, Value: "NaN"}}},
		{SubjectID: subjectID, Answers: []dto.FeedbackAnswer{{QuestionNo: 1, QuestionType: models.QuestionRate, Value: "Inf"}}},
		{SubjectID: subjectID, Answers: []dto.FeedbackAnswer{{QuestionNo: 1, QuestionType: models.QuestionRate, Value: "-Inf"}}},
		{SubjectID: subjectID, Answers: []dto.FeedbackAnswer{{QuestionNo: 2, QuestionType: models.QuestionTrueFalse, Value: "NaN"}}},
		{SubjectID: subjectID, Answers: []dto.FeedbackAnswer{
			{QuestionNo: 3, QuestionType: models.QuestionDescriptive, Value: "a"},
			{QuestionNo: 3, QuestionType: models.QuestionDescriptive, Value: "b"},
		}},
	}
	for i, req := range cases {
		_, err := svc.Submit(ctx, student, req)
		require.Error(t, err, "case %d", i)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code, "case %d", i)
	}
	assert.Empty(t, store.responses)
}

func TestAnalyzeUsesCacheUntilSubmission(t *testing.T) {
	svc, store, mem := newFeedbackFixture()
	ctx := context.Background()

	first, err := svc.Analyze(ctx, subjectID)
	require.NoError(t, err)
	require.Len(t, first.Questions, 3)
	assert.Contains(t, mem.items, AnalysisCacheKey(subjectID))

	second, err := svc.Analyze(ctx, subjectID)
	require.NoError(t, err)
	assert.Equal(t, first.Questions, second.Questions)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, store.listResponses)

	_, err = svc.Submit(ctx, &models.JWTClaims{UserID: "s1"}, dto.SubmitFeedbackRequest{
		SubjectID: subjectID,
		Answers:   []dto.FeedbackAnswer{{QuestionNo: 1, QuestionType: models.QuestionRate, Value: "5"}},
	})
	require.NoError(t, err)
	assert.NotContains(t, mem.items, AnalysisCacheKey(subjectID))

	third, err := svc.Analyze(ctx, subjectID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.listResponses)
	assert.Equal(t, 5.0, third.Questions[0].AverageValue)
}

func TestAnalyzeInvalidSubjectAndEmptyCatalog(t *testing.T) {
	svc, store, _ := newFeedbackFixture()

	_, err := svc.Analyze(context.Background(), "abc")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	store.questions = nil
	resp, err := svc.Analyze(context.Background(), subjectID)
	require.NoError(t, err)
	assert.Empty(t, resp.Questions)
	assert.Equal(t, EmptyCatalogMessage, resp.Message)
}

func TestExportFormats(t *testing.T) {
	svc, store, _ := newFeedbackFixture()
	store.responses = []models.FeedbackResponse{{SubjectID: subjectID, QuestionNo: 1, Value: "4"}}

	file, err := svc.Export(context.Background(), subjectID, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "feedback-"+subjectID+".csv", file.Filename)
	assert.Contains(t, string(file.Data), "1,rate,Difficulty,1,4.00")

	file, err = svc.Export(context.Background(), subjectID, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))

	_, err = svc.Export(context.Background(), subjectID, "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReplaceQuestionsValidates(t *testing.T) {
	svc, store, _ := newFeedbackFixture()

	err := svc.ReplaceQuestions(context.Background(), []models.FeedbackQuestion{
		{QuestionNo: 1, Question: "a", QuestionType: models.QuestionRate},
		{QuestionNo: 1, Question: "b", QuestionType: models.QuestionRate},
	})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ReplaceQuestions(context.Background(), DefaultQuestions()))
	assert.Len(t, store.questions, 7)
}
