package models

import "encoding/json"

// CompareRequest тело POST /analyses/compare: две ссылки или два id анализов.
type CompareRequest struct {
	VideoURLs   []string `json:"video_urls" validate:"omitempty,len=2,dive,required"`
	AnalysisIDs []string `json:"analysis_ids" validate:"omitempty,len=2,dive,uuid"`
}

// ComparisonInsights сравнение двух видео от модели.
type ComparisonInsights struct {
	SentimentComparison       string   `json:"sentiment_comparison"`
	EngagementComparison      string   `json:"engagement_comparison"`
	TopicsComparison          string   `json:"topics_comparison"`
	CommunityHealthComparison string   `json:"community_health_comparison"`
	Recommendations           []string `json:"recommendations"`
}

// ComparedVideo одна сторона сравнения.
type ComparedVideo struct {
	AnalysisID string        `json:"analysis_id"`
	VideoURL   string        `json:"video_url"`
	VideoID    string        `json:"video_id"`
	Reused     bool          `json:"reused"`
	Statistics Statistics    `json:"statistics"`
	AIAnalysis AIAnalysis    `json:"ai_analysis"`
	Video      *VideoDetails `json:"video,omitempty"`
}

// CompareResult ответ на сравнение.
type CompareResult struct {
	Status     string             `json:"status"`
	Videos     []ComparedVideo    `json:"videos"`
	Comparison ComparisonInsights `json:"comparison"`
	Degraded   bool               `json:"degraded"`
}

// ChatRequest вопрос о комментариях анализа.
type ChatRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// ChatResponse ответ анализатора на вопрос.
type ChatResponse struct {
	Answer             string          `json:"answer"`
	RelevantComments   []Comment       `json:"relevant_comments"`
	Confidence         float64         `json:"confidence"`
	AdditionalInsights json.RawMessage `json:"additional_insights,omitempty"`
}

// FrameRequest запрос кадра видео.
type FrameRequest struct {
	YouTubeURL string `json:"youtube_url" validate:"required"`
	Time       string `json:"time" validate:"required"`
	Width      int    `json:"width,omitempty" validate:"omitempty,min=16,max=1920"`
}

// SummaryRequest запрос краткого пересказа фрагмента видео.
type SummaryRequest struct {
	YouTubeURL string `json:"youtube_url" validate:"required"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
}

// SummaryResponse пересказ фрагмента видео.
type SummaryResponse struct {
	Summary    string          `json:"summary"`
	Transcript string          `json:"transcript"`
	Analysis   json.RawMessage `json:"analysis,omitempty"`
}
