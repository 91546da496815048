package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/comment-analytics/internal/cache"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// Границы пагинации истории.
const (
	DefaultPageSize = 10
	MaxPageSize     = 50
	// MaxPage держит OFFSET в пределах int для любого размера страницы.
	MaxPage = 1 << 20
)

// Status возвращает анализ пользователя. Пока анализ не завершен, статус processing.
// Завершенные анализы читаются из кеша.
func (s *Service) Status(ctx context.Context, userID, id string) (*models.Analysis, error) {
	const op = "analysis.Status"
	if userID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrUnauthorized)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	log := s.log.With(slog.String("op", op), slog.String("analysis_id", id))

	var cached models.Analysis
	found, err := s.cache.Get(ctx, cache.AnalysisKey(id), &cached)
	if err != nil {
		log.Warn("cache read failed", sl.Err(err))
	}
	if found {
		if cached.UserID != userID {
			return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
		}
		return &cached, nil
	}

	a, err := s.repo.GetAnalysis(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.IsTerminal() {
		if err := s.cache.Set(ctx, cache.AnalysisKey(id), a, s.opts.CacheTTL); err != nil {
			log.Warn("failed to cache analysis", sl.Err(err))
		}
	}
	return a, nil
}

// List возвращает страницу истории анализов, новые сверху.
func (s *Service) List(ctx context.Context, userID string, page, pageSize int) (*models.AnalysisPage, error) {
	const op = "analysis.List"
	if userID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrUnauthorized)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)
	page = min(page, MaxPage)

	total, err := s.repo.CountAnalyses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	items, err := s.repo.ListAnalyses(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if items == nil {
		items = []models.AnalysisSummary{}
	}

	return &models.AnalysisPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Chat задает вопрос по комментариям завершенного анализа.
func (s *Service) Chat(ctx context.Context, userID, analysisID, question string) (*models.ChatResponse, error) {
	const op = "analysis.Chat"
	if userID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrUnauthorized)
	}
	if question == "" {
		return nil, fmt.Errorf("%s: %w: question is required", op, apperr.ErrInvalidInput)
	}
	a, err := s.Status(ctx, userID, analysisID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.Sentiment.Status != models.AnalysisCompleted {
		return nil, fmt.Errorf("%s: %w: analysis is not completed", op, apperr.ErrInvalidInput)
	}

	resp, err := callAnalyzer(ctx, "chat", func(ctx context.Context) (*models.ChatResponse, error) {
		return s.analyzer.Chat(ctx, question, a.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.RelevantComments == nil {
		resp.RelevantComments = []models.Comment{}
	}
	return resp, nil
}

// SyncUser создает или обновляет пользователя по данным сессии.
func (s *Service) SyncUser(ctx context.Context, userID, email, name string) (*models.Profile, error) {
	const op = "analysis.SyncUser"
	if userID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrUnauthorized)
	}
	u, err := s.repo.UpsertUser(ctx, userID, email, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p := models.NewProfile(*u, s.opts.FreeAnalysisLimit)
	return &p, nil
}

// Profile возвращает пользователя с тарифом и остатком бесплатных анализов.
func (s *Service) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "analysis.Profile"
	if userID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrUnauthorized)
	}
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p := models.NewProfile(*u, s.opts.FreeAnalysisLimit)
	return &p, nil
}

// AnalyzerHealth проверяет доступность анализатора.
func (s *Service) AnalyzerHealth(ctx context.Context) error {
	const op = "analysis.AnalyzerHealth"
	if err := s.analyzer.Health(ctx); err != nil {
		return fmt.Errorf("%s: %w: %v", op, apperr.ErrServiceUnavailable, err)
	}
	return nil
}
