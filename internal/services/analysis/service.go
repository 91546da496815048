// Package analysis оркестрирует запуск анализа комментариев: проверки доступа,
// резерв лимита, вызов анализатора и запись результата. Здесь же чтение истории,
// сравнение видео, чат по комментариям и работа с кадрами и пересказами.
package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// Repository хранилище пользователей и анализов.
type Repository interface {
	UpsertUser(ctx context.Context, id, email, name string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ReserveAnalysisSlot(ctx context.Context, userID string, freeLimit int) (*models.User, error)
	ReleaseAnalysisSlot(ctx context.Context, userID string) error
	CreateAnalysis(ctx context.Context, userID, id, videoURL, videoID string) (*models.Analysis, error)
	GetAnalysis(ctx context.Context, userID, id string) (*models.Analysis, error)
	CompleteAnalysis(ctx context.Context, id string, result models.AnalyzerResult) (*models.Analysis, error)
	FailAnalysis(ctx context.Context, id, message string) (*models.Analysis, error)
	SetAnalysisVideo(ctx context.Context, id string, video *models.VideoDetails) error
	ListAnalyses(ctx context.Context, userID string, limit, offset int) ([]models.AnalysisSummary, error)
	CountAnalyses(ctx context.Context, userID string) (int, error)
	FindCompletedByVideo(ctx context.Context, userID, videoID string) (*models.Analysis, error)
}

// Analyzer внешний сервис анализа.
type Analyzer interface {
	Health(ctx context.Context) error
	Analyze(ctx context.Context, videoURL, analysisID string) (*models.AnalyzerResult, error)
	Chat(ctx context.Context, question, analysisID string) (*models.ChatResponse, error)
	ExtractFrame(ctx context.Context, youtubeURL, at string) ([]byte, error)
	Summarize(ctx context.Context, req models.SummaryRequest) (*models.SummaryResponse, error)
	Complete(ctx context.Context, prompt string) (json.RawMessage, error)
}

// VideoLookup источник метаданных видео.
type VideoLookup interface {
	VideoDetails(ctx context.Context, videoID string) (*models.VideoDetails, error)
}

// Cache кеш завершенных анализов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Publisher очередь уведомлений.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Options параметры тарифа и кеша.
type Options struct {
	FreeAnalysisLimit int
	ReleaseOnFailure  bool
	CacheTTL          time.Duration
	// MetadataTimeout ограничивает запрос к YouTube Data API.
	MetadataTimeout time.Duration
}

// Service сервис анализов.
type Service struct {
	repo      Repository
	analyzer  Analyzer
	videos    VideoLookup
	cache     Cache
	publisher Publisher
	validate  *validator.Validate
	opts      Options
	log       *slog.Logger
	newID     func() string
}

// New создает сервис. videos может быть nil, тогда метаданные видео не запрашиваются.
func New(log *slog.Logger, repo Repository, analyzer Analyzer, cache Cache, publisher Publisher, videos VideoLookup, opts Options) *Service {
	if opts.FreeAnalysisLimit <= 0 {
		opts.FreeAnalysisLimit = 1
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = 5 * time.Second
	}
	return &Service{
		repo:      repo,
		analyzer:  analyzer,
		videos:    videos,
		cache:     cache,
		publisher: publisher,
		validate:  validator.New(),
		opts:      opts,
		log:       log,
		newID:     uuid.NewString,
	}
}

// FreeAnalysisLimit лимит анализов тарифа FREE.
func (s *Service) FreeAnalysisLimit() int {
	return s.opts.FreeAnalysisLimit
}
