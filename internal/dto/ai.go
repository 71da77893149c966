package dto

// ChatRequest is a free-form question for the curriculum assistant.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=8000"`
}

// AIReply wraps generated text.
type AIReply struct {
	Reply string `json:"reply"`
}

// AnalyzeFeedbackRequest carries descriptive answers to summarise.
type AnalyzeFeedbackRequest struct {
	FeedbackTexts []string `json:"feedbackTexts" validate:"required,min=1,dive,required"`
}

// SentimentBreakdown holds percentages that add up to roughly 100.
type SentimentBreakdown struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// AspectAnalysis scores one recurring theme.
type AspectAnalysis struct {
	Aspect    string   `json:"aspect"`
	Sentiment string   `json:"sentiment"`
	Score     float64  `json:"score"`
	KeyPoints []string `json:"keyPoints"`
}

// FeedbackAnalysis is the structured sentiment report.
type FeedbackAnalysis struct {
	ExecutiveSummary          string             `json:"executiveSummary"`
	Sentiment                 SentimentBreakdown `json:"sentiment"`
	AspectAnalysis            []AspectAnalysis   `json:"aspectAnalysis"`
	ActionableRecommendations []string           `json:"actionableRecommendations"`
	CriticalAlerts            []string           `json:"criticalAlerts"`
}
