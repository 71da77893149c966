package models

import (
	"time"

	"github.com/lib/pq"
)

// QuestionType determines how answers to a question are aggregated.
type QuestionType string

const (
	QuestionRate        QuestionType = "rate"
	QuestionTrueFalse   QuestionType = "true/false"
	QuestionSelect      QuestionType = "select"
	QuestionDescriptive QuestionType = "descriptive"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionRate, QuestionTrueFalse, QuestionSelect, QuestionDescriptive:
		return true
	}
	return false
}

// Numeric reports whether answers are averaged rather than collected as text.
func (t QuestionType) Numeric() bool {
	return t == QuestionRate || t == QuestionTrueFalse
}

// FeedbackQuestion is an entry of the feedback form catalog.
type FeedbackQuestion struct {
	QuestionNo   int            `db:"question_no" json:"questionNo"`
	Question     string         `db:"question" json:"question"`
	QuestionType QuestionType   `db:"question_type" json:"questionType"`
	Options      pq.StringArray `db:"options" json:"options"`
	IsActive     bool           `db:"is_active" json:"isActive"`
}

// FeedbackResponse is one answered question of one submission.
type FeedbackResponse struct {
	ID           string       `db:"id" json:"id"`
	SubjectID    string       `db:"subject_id" json:"subjectId"`
	RespondentID string       `db:"respondent_id" json:"by"`
	QuestionNo   int          `db:"question_no" json:"questionNo"`
	QuestionType QuestionType `db:"question_type" json:"questionType"`
	Value        string       `db:"value" json:"value"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
}

// QuestionSummary aggregates the responses to one catalog question.
type QuestionSummary struct {
	QuestionNo     int          `json:"questionNo"`
	QuestionType   QuestionType `json:"questionType"`
	QuestionText   string       `json:"questionText"`
	AverageValue   float64      `json:"averageValue"`
	TextResponses  []string     `json:"textResponses"`
	TotalResponses int          `json:"totalResponses"`
}
