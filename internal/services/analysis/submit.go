package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/comment-analytics/internal/analyzer"
	"github.com/magabrotheeeer/comment-analytics/internal/cache"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/youtubeurl"
	"github.com/magabrotheeeer/comment-analytics/internal/metrics"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// Сообщения, которые сохраняются в анализ при ошибке.
const (
	MsgTimeout        = "Analysis timed out: the analyzer did not respond in time, please try again later"
	MsgInvalidPayload = "Analysis failed: the analyzer returned an invalid result"
	msgFailedPrefix   = "Analysis failed: "
)

// Submit запускает анализ видео и ждет его завершения.
//
// Проверки выполняются до любых изменений: доступность анализатора, пользователь,
// лимит тарифа, ссылка. После резерва слота ошибка записывается в анализ, а вызывающему
// возвращается классифицированная ошибка.
func (s *Service) Submit(ctx context.Context, userID, videoURL string) (*models.SubmitResult, error) {
	const op = "analysis.Submit"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	if err := s.analyzer.Health(ctx); err != nil {
		log.Warn("analyzer health check failed", sl.Err(err))
		metrics.AnalysesTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrServiceUnavailable)
	}
	if userID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrUnauthorized)
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !user.IsPro() && user.AnalysisCount >= s.opts.FreeAnalysisLimit {
		metrics.QuotaRejections.Inc()
		metrics.AnalysesTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrQuotaExceeded)
	}

	if !youtubeurl.IsYouTubeURL(videoURL) {
		return nil, fmt.Errorf("%s: %w: not a YouTube video URL", op, apperr.ErrInvalidInput)
	}
	videoID := youtubeurl.ExtractVideoID(videoURL)
	if videoID == "" {
		return nil, fmt.Errorf("%s: %w: could not extract video id", op, apperr.ErrInvalidInput)
	}

	user, err = s.repo.ReserveAnalysisSlot(ctx, userID, s.opts.FreeAnalysisLimit)
	if err != nil {
		if errors.Is(err, apperr.ErrQuotaExceeded) {
			metrics.QuotaRejections.Inc()
			metrics.AnalysesTotal.WithLabelValues(metrics.ResultRejected).Inc()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Клиент может закрыть вкладку, но анализ все равно доводится до конца.
	bg := context.WithoutCancel(ctx)

	id := s.newID()
	a, err := s.repo.CreateAnalysis(bg, userID, id, videoURL, videoID)
	if err != nil {
		if relErr := s.repo.ReleaseAnalysisSlot(bg, userID); relErr != nil {
			log.Error("failed to release analysis slot", sl.Err(relErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log = log.With(slog.String("analysis_id", id), slog.String("video_id", videoID))
	log.Info("analysis started")

	video := s.lookupVideo(bg, log, id, videoID)

	start := time.Now()
	res, err := s.analyzer.Analyze(bg, videoURL, id)
	metrics.ObserveAnalyzer("analyze", start, err)
	if err == nil {
		if vErr := s.validate.Struct(res); vErr != nil {
			log.Error("analyzer payload failed validation", sl.Err(vErr))
			err = fmt.Errorf("%w: %v", errInvalidPayload, vErr)
		}
	}
	if err != nil {
		return nil, s.fail(bg, log, user, a, err)
	}

	done, err := s.repo.CompleteAnalysis(bg, id, *res)
	if err != nil {
		log.Error("failed to save analysis result", sl.Err(err))
		return nil, s.fail(bg, log, user, a, err)
	}
	done.Video = video

	if err := s.cache.Set(bg, cache.AnalysisKey(id), done, s.opts.CacheTTL); err != nil {
		log.Warn("failed to cache analysis", sl.Err(err))
	}
	s.notify(bg, log, user, done)
	metrics.AnalysesTotal.WithLabelValues(metrics.ResultCompleted).Inc()
	log.Info("analysis completed", slog.Int("comments", len(done.Comments)))

	return models.NewSubmitResult(done), nil
}

var errInvalidPayload = errors.New("invalid analyzer payload")

// fail переводит анализ в error и возвращает ошибку для вызывающего.
func (s *Service) fail(ctx context.Context, log *slog.Logger, user *models.User, a *models.Analysis, cause error) error {
	const op = "analysis.Submit"
	msg := failureMessage(cause)
	log.Error("analysis failed", sl.Err(cause))

	failed, err := s.repo.FailAnalysis(ctx, a.ID, msg)
	if err != nil {
		log.Error("failed to record analysis error", sl.Err(err))
		failed = a
		failed.Sentiment = models.Sentiment{Status: models.AnalysisError, Message: msg}
	}
	if s.opts.ReleaseOnFailure {
		if err := s.repo.ReleaseAnalysisSlot(ctx, user.ID); err != nil {
			log.Error("failed to release analysis slot", sl.Err(err))
		}
	}
	s.notify(ctx, log, user, failed)
	metrics.AnalysesTotal.WithLabelValues(metrics.ResultError).Inc()

	return fmt.Errorf("%s: %w", op, classify(cause))
}

func (s *Service) lookupVideo(ctx context.Context, log *slog.Logger, id, videoID string) *models.VideoDetails {
	if s.videos == nil {
		return nil
	}
	lctx, cancel := context.WithTimeout(ctx, s.opts.MetadataTimeout)
	defer cancel()

	video, err := s.videos.VideoDetails(lctx, videoID)
	if err != nil {
		log.Warn("failed to load video metadata", sl.Err(err))
		return nil
	}
	if err := s.repo.SetAnalysisVideo(ctx, id, video); err != nil {
		log.Warn("failed to save video metadata", sl.Err(err))
	}
	return video
}

func (s *Service) notify(ctx context.Context, log *slog.Logger, user *models.User, a *models.Analysis) {
	if user.Email == "" {
		return
	}
	n := models.Notification{
		Kind:       models.NotificationAnalysisFinished,
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		AnalysisID: a.ID,
		VideoURL:   a.VideoURL,
		Status:     a.Sentiment.Status,
		Message:    a.Sentiment.Message,
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		log.Warn("failed to publish notification", sl.Err(err))
	}
}

// failureMessage текст ошибки для пользователя, сохраняемый в анализ.
func failureMessage(err error) string {
	var aerr *analyzer.Error
	switch {
	case isTimeout(err):
		return MsgTimeout
	case errors.Is(err, errInvalidPayload):
		return MsgInvalidPayload
	case errors.As(err, &aerr) && aerr.Message != "":
		return msgFailedPrefix + aerr.Message
	default:
		return msgFailedPrefix + "unexpected error while analyzing comments"
	}
}

// classify приводит ошибку анализатора к прикладной: таймаут, лимит квоты или внутренняя.
func classify(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %s", apperr.ErrTimeout, MsgTimeout)
	}
	var aerr *analyzer.Error
	if errors.As(err, &aerr) && strings.Contains(strings.ToLower(aerr.Message), "quota") {
		return fmt.Errorf("%w: %s", apperr.ErrQuotaExceeded, aerr.Message)
	}
	return fmt.Errorf("%w: %v", apperr.ErrInternal, err)
}

func isTimeout(err error) bool {
	return errors.Is(err, apperr.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
