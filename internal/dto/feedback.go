package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/noah-isme/curriculum-portal-api/internal/models"
)

// AnswerValue accepts a JSON string, number or boolean and keeps its text form.
type AnswerValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = AnswerValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = AnswerValue(strconv.FormatBool(b))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("answer value must be a string, number or boolean")
		}
		*v = AnswerValue(n.String())
	}
	return nil
}

// FeedbackAnswer is one answered question.
type FeedbackAnswer struct {
	QuestionNo   int                 `json:"questionNo" validate:"required,min=1"`
	QuestionType models.QuestionType `json:"questionType" validate:"required,oneof=rate true/false select descriptive"`
	Value        AnswerValue         `json:"value" validate:"required"`
}

// SubmitFeedbackRequest is one feedback form submission for a subject.
type SubmitFeedbackRequest struct {
	SubjectID string           `json:"subjectId" validate:"required,uuid"`
	Answers   []FeedbackAnswer `json:"answers" validate:"required,min=1,dive"`
}

// SubmitFeedbackResponse echoes what was stored.
type SubmitFeedbackResponse struct {
	Message  string                    `json:"message"`
	DataSent []models.FeedbackResponse `json:"dataSent"`
}

// FeedbackAnalysisResponse is the per-question summary of a subject.
type FeedbackAnalysisResponse struct {
	SubjectID string                   `json:"subjectId"`
	Questions []models.QuestionSummary `json:"questions"`
	Message   string                   `json:"message,omitempty"`
	Cached    bool                     `json:"-"`
}
