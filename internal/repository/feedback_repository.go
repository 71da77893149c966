package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/curriculum-portal-api/internal/models"
	"github.com/noah-isme/curriculum-portal-api/pkg/database"
)

// FeedbackRepository persists the question catalog and submitted answers.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// ListQuestions returns the catalog ordered by question number.
func (r *FeedbackRepository) ListQuestions(ctx context.Context, activeOnly bool) ([]models.FeedbackQuestion, error) {
	query := `SELECT question_no, question, question_type, options, is_active FROM feedback_questions`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY question_no`
	questions := make([]models.FeedbackQuestion, 0)
	if err := r.db.SelectContext(ctx, &questions, query); err != nil {
		return nil, fmt.Errorf("list feedback questions: %w", err)
	}
	return questions, nil
}

// ReplaceQuestions swaps the whole catalog in one transaction.
func (r *FeedbackRepository) ReplaceQuestions(ctx context.Context, questions []models.FeedbackQuestion) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM feedback_questions`); err != nil {
			return fmt.Errorf("clear feedback questions: %w", err)
		}
		if len(questions) == 0 {
			return nil
		}
		const query = `INSERT INTO feedback_questions (question_no, question, question_type, options, is_active)
		VALUES (:question_no, :question, :question_type, :options, :is_active)`
		if _, err := tx.NamedExecContext(ctx, query, questions); err != nil {
			return fmt.Errorf("insert feedback questions: %w", err)
		}
		return nil
	})
}

// InsertResponses appends one row per answer of a submission.
func (r *FeedbackRepository) InsertResponses(ctx context.Context, responses []models.FeedbackResponse) error {
	if len(responses) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range responses {
		if responses[i].ID == "" {
			responses[i].ID = uuid.NewString()
		}
		if responses[i].CreatedAt.IsZero() {
			responses[i].CreatedAt = now
		}
	}
	const query = `INSERT INTO feedback_responses (id, subject_id, respondent_id, question_no, question_type, value, created_at)
	VALUES (:id, :subject_id, :respondent_id, :question_no, :question_type, :value, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, responses); err != nil {
		return fmt.Errorf("insert feedback responses: %w", err)
	}
	return nil
}

// ListResponses returns every answer for a subject in submission order.
func (r *FeedbackRepository) ListResponses(ctx context.Context, subjectID string) ([]models.FeedbackResponse, error) {
	const query = `SELECT id, subject_id, respondent_id, question_no, question_type, value, created_at
	FROM feedback_responses WHERE subject_id = $1 ORDER BY created_at, id`
	responses := make([]models.FeedbackResponse, 0)
	if err := r.db.SelectContext(ctx, &responses, query, subjectID); err != nil {
		return nil, fmt.Errorf("list feedback responses: %w", err)
	}
	return responses, nil
}
