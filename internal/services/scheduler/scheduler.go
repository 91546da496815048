// Package scheduler выполняет фоновые задачи обслуживания по расписанию cron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/comment-analytics/internal/config"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/metrics"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
	"github.com/magabrotheeeer/comment-analytics/internal/storage/repository"
)

// MsgStale сообщение об ошибке для анализа, который не завершился вовремя.
const MsgStale = "Analysis did not finish in time"

// Имена задач для метрик и логов.
const (
	JobSweep  = "sweep_stale_analyses"
	JobExpire = "expire_subscriptions"
)

// Repository хранилище, с которым работают задачи.
type Repository interface {
	FailStaleAnalyses(ctx context.Context, before time.Time, message string) ([]repository.StaleAnalysis, error)
	ReleaseAnalysisSlot(ctx context.Context, userID string) error
	ExpireLapsedSubscriptions(ctx context.Context, before time.Time) ([]models.User, error)
}

// Publisher очередь уведомлений.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// SchedulerService задачи обслуживания: зависшие анализы и истекшие подписки.
type SchedulerService struct {
	repo             Repository
	publisher        Publisher
	cfg              config.Scheduler
	releaseOnFailure bool
	log              *slog.Logger
	now              func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo Repository, publisher Publisher, cfg config.Scheduler, quota config.Quota, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:             repo,
		publisher:        publisher,
		cfg:              cfg,
		releaseOnFailure: quota.ReleaseOnFailure,
		log:              log,
		now:              time.Now,
	}
}

// Cron собирает планировщик с обеими задачами. Задача пропускается,
// если предыдущий запуск еще не закончился.
func (s *SchedulerService) Cron(ctx context.Context) (*cron.Cron, error) {
	const op = "scheduler.Cron"
	logger := cron.PrintfLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(s.cfg.SweepSpec, func() { _, _ = s.SweepStaleAnalyses(ctx) }); err != nil {
		return nil, fmt.Errorf("%s: sweep spec %q: %w", op, s.cfg.SweepSpec, err)
	}
	if _, err := c.AddFunc(s.cfg.ExpireSpec, func() { _, _ = s.ExpireSubscriptions(ctx) }); err != nil {
		return nil, fmt.Errorf("%s: expire spec %q: %w", op, s.cfg.ExpireSpec, err)
	}
	return c, nil
}

// SweepStaleAnalyses переводит в error анализы, которые остались в processing дольше StaleAfter,
// например после падения процесса посреди запроса.
func (s *SchedulerService) SweepStaleAnalyses(ctx context.Context) (int, error) {
	log := s.log.With(slog.String("job", JobSweep))
	before := s.now().Add(-s.cfg.StaleAfter)

	stale, err := s.repo.FailStaleAnalyses(ctx, before, MsgStale)
	if err != nil {
		log.Error("failed to sweep stale analyses", sl.Err(err))
		return 0, err
	}
	if len(stale) == 0 {
		log.Debug("no stale analyses found")
		return 0, nil
	}
	log.Info("stale analyses failed", slog.Int("count", len(stale)))
	metrics.MaintenanceAffected.WithLabelValues(JobSweep).Add(float64(len(stale)))
	metrics.AnalysesTotal.WithLabelValues(metrics.ResultError).Add(float64(len(stale)))

	for _, a := range stale {
		if s.releaseOnFailure {
			if err := s.repo.ReleaseAnalysisSlot(ctx, a.UserID); err != nil {
				log.Error("failed to release analysis slot", slog.String("user_id", a.UserID), sl.Err(err))
			}
		}
		if a.Email == "" {
			continue
		}
		s.publish(ctx, log, models.Notification{
			Kind:       models.NotificationAnalysisFinished,
			UserID:     a.UserID,
			Email:      a.Email,
			AnalysisID: a.ID,
			VideoURL:   a.VideoURL,
			Status:     models.AnalysisError,
			Message:    MsgStale,
		})
	}
	return len(stale), nil
}

// ExpireSubscriptions переводит на FREE пользователей, чья подписка не продлилась
// в течение ExpireGrace после конца оплаченного периода.
func (s *SchedulerService) ExpireSubscriptions(ctx context.Context) (int, error) {
	log := s.log.With(slog.String("job", JobExpire))
	before := s.now().Add(-s.cfg.ExpireGrace)

	users, err := s.repo.ExpireLapsedSubscriptions(ctx, before)
	if err != nil {
		log.Error("failed to expire subscriptions", sl.Err(err))
		return 0, err
	}
	if len(users) == 0 {
		log.Debug("no lapsed subscriptions found")
		return 0, nil
	}
	log.Info("subscriptions expired", slog.Int("count", len(users)))
	metrics.MaintenanceAffected.WithLabelValues(JobExpire).Add(float64(len(users)))

	for _, u := range users {
		if u.Email == "" {
			continue
		}
		s.publish(ctx, log, models.Notification{
			Kind:   models.NotificationPlanExpired,
			UserID: u.ID,
			Email:  u.Email,
			Name:   u.Name,
			Plan:   u.Plan,
			Status: models.SubscriptionExpired,
		})
	}
	return len(users), nil
}

func (s *SchedulerService) publish(ctx context.Context, log *slog.Logger, n models.Notification) {
	if err := s.publisher.Publish(ctx, n); err != nil {
		log.Error("failed to publish message", slog.String("user_id", n.UserID), sl.Err(err))
	}
}
