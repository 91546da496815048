package models

import (
	"time"
)

// Статусы жизненного цикла анализа. Переходы только processing -> completed|error.
const (
	AnalysisProcessing = "processing"
	AnalysisCompleted  = "completed"
	AnalysisError      = "error"
)

// Analysis один запрошенный анализ комментариев видео.
type Analysis struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	VideoURL       string         `json:"video_url"`
	VideoID        string         `json:"video_id"`
	Sentiment      Sentiment      `json:"sentiment"`
	Comments       []Comment      `json:"comments"`
	Statistics     Statistics     `json:"statistics"`
	Visualizations Visualizations `json:"visualizations"`
	AIAnalysis     AIAnalysis     `json:"ai_analysis"`
	Video          *VideoDetails  `json:"video,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Sentiment статус анализа и сообщение об ошибке.
type Sentiment struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// IsTerminal сообщает, что анализ больше не изменится.
func (a *Analysis) IsTerminal() bool {
	return a.Sentiment.Status == AnalysisCompleted || a.Sentiment.Status == AnalysisError
}

// Comment комментарий к видео.
type Comment struct {
	ID          string  `json:"id,omitempty"`
	Author      string  `json:"author"`
	Text        string  `json:"text" validate:"required"`
	Likes       int     `json:"likes" validate:"gte=0"`
	Replies     int     `json:"replies,omitempty" validate:"gte=0"`
	PublishedAt string  `json:"published_at,omitempty"`
	Sentiment   string  `json:"sentiment,omitempty" validate:"omitempty,oneof=positive neutral negative"`
	Score       float64 `json:"sentiment_score,omitempty"`
}

// SentimentDistribution количество комментариев по тональности.
type SentimentDistribution struct {
	Positive int `json:"positive" validate:"gte=0"`
	Neutral  int `json:"neutral" validate:"gte=0"`
	Negative int `json:"negative" validate:"gte=0"`
}

// Statistics агрегированные метрики по комментариям.
type Statistics struct {
	TotalComments         int                   `json:"total_comments" validate:"gte=0"`
	Sentiment             SentimentDistribution `json:"sentiment_distribution"`
	AverageSentiment      float64               `json:"average_sentiment" validate:"gte=-1,lte=1"`
	AverageLikes          float64               `json:"average_likes" validate:"gte=0"`
	EngagementRate        float64               `json:"engagement_rate" validate:"gte=0"`
	TopKeywords           []string              `json:"top_keywords,omitempty"`
	CommentsPerDay        map[string]int        `json:"comments_per_day,omitempty"`
	MostLikedCommentIndex int                   `json:"most_liked_comment_index,omitempty" validate:"gte=0"`
}

// Visualizations готовые графики, изображения закодированы в base64.
type Visualizations struct {
	SentimentPie      string `json:"sentiment_pie,omitempty"`
	WordCloud         string `json:"word_cloud,omitempty"`
	EngagementChart   string `json:"engagement_chart,omitempty"`
	SentimentTimeline string `json:"sentiment_timeline,omitempty"`
}

// Topic тема обсуждения в комментариях.
type Topic struct {
	Name      string  `json:"name" validate:"required"`
	Count     int     `json:"count" validate:"gte=0"`
	Sentiment float64 `json:"sentiment" validate:"gte=-1,lte=1"`
}

// AIAnalysis выводы модели по комментариям.
type AIAnalysis struct {
	Summary         string         `json:"summary,omitempty"`
	Topics          []Topic        `json:"topics,omitempty" validate:"dive"`
	Categories      map[string]int `json:"categories,omitempty"`
	KeyInsights     []string       `json:"key_insights,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	CommunityHealth string         `json:"community_health,omitempty"`
}

// VideoDetails метаданные видео из YouTube Data API.
type VideoDetails struct {
	Title        string `json:"title"`
	ChannelTitle string `json:"channel_title"`
	PublishedAt  string `json:"published_at,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	ViewCount    uint64 `json:"view_count"`
	LikeCount    uint64 `json:"like_count"`
	CommentCount uint64 `json:"comment_count"`
}

// AnalyzerResult ответ анализатора на POST /api/analyze.
type AnalyzerResult struct {
	Comments       []Comment      `json:"comments" validate:"dive"`
	Statistics     Statistics     `json:"statistics"`
	Visualizations Visualizations `json:"visualizations"`
	AIAnalysis     AIAnalysis     `json:"ai_analysis"`
}

// SubmitRequest тело POST /analyses.
type SubmitRequest struct {
	VideoURL string `json:"video_url" validate:"required"`
}

// SubmitResult ответ на запуск анализа. Поля результата продублированы на верхнем уровне.
type SubmitResult struct {
	Status         string         `json:"status"`
	ID             string         `json:"id"`
	Analysis       *Analysis      `json:"analysis"`
	Comments       []Comment      `json:"comments"`
	Statistics     Statistics     `json:"statistics"`
	Visualizations Visualizations `json:"visualizations"`
	AIAnalysis     AIAnalysis     `json:"ai_analysis"`
}

// NewSubmitResult собирает ответ из завершенного анализа.
func NewSubmitResult(a *Analysis) *SubmitResult {
	comments := a.Comments
	if comments == nil {
		comments = []Comment{}
	}
	return &SubmitResult{
		Status:         "success",
		ID:             a.ID,
		Analysis:       a,
		Comments:       comments,
		Statistics:     a.Statistics,
		Visualizations: a.Visualizations,
		AIAnalysis:     a.AIAnalysis,
	}
}

// AnalysisSummary элемент списка истории, без комментариев и графиков.
type AnalysisSummary struct {
	ID         string        `json:"id"`
	VideoURL   string        `json:"video_url"`
	VideoID    string        `json:"video_id"`
	Sentiment  Sentiment     `json:"sentiment"`
	Statistics Statistics    `json:"statistics"`
	Video      *VideoDetails `json:"video,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// AnalysisPage страница истории анализов.
type AnalysisPage struct {
	Items      []AnalysisSummary `json:"items"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
}
