package commentanalytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/comment-analytics/internal/analyzer"
	"github.com/magabrotheeeer/comment-analytics/internal/billing"
	"github.com/magabrotheeeer/comment-analytics/internal/cache"
	"github.com/magabrotheeeer/comment-analytics/internal/config"
	"github.com/magabrotheeeer/comment-analytics/internal/http/middlewarectx"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/session"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/migrations"
	analysisservice "github.com/magabrotheeeer/comment-analytics/internal/services/analysis"
	billingservice "github.com/magabrotheeeer/comment-analytics/internal/services/billing"
	"github.com/magabrotheeeer/comment-analytics/internal/storage/repository"
	"github.com/magabrotheeeer/comment-analytics/internal/youtube"
)

// App HTTP API сервиса.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает хранилище, кеш, брокер и внешние сервисы и собирает роутер.
// Stripe, YouTube Data API и RabbitMQ необязательны: без настроек сервис работает без них.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	app := &App{logger: logger, db: db}

	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		app.close()
		return nil, err
	}

	app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		app.close()
		return nil, err
	}

	var publisher analysisservice.Publisher = rabbitmq.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		app.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		app.ch, err = rabbitmq.SetupChannel(app.conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		publisher = rabbitmq.NewPublisher(app.ch)
	} else {
		logger.Warn("rabbitmq url is empty, notifications disabled")
	}

	var videos analysisservice.VideoLookup
	if cfg.YouTube.APIKey != "" {
		yt, err := youtube.New(ctx, cfg.YouTube.APIKey)
		if err != nil {
			app.close()
			return nil, err
		}
		videos = yt
	}

	var provider billingservice.Provider
	stripe, err := billing.NewStripe(cfg.Billing)
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		logger.Warn("stripe secret key is empty, billing disabled")
	case err != nil:
		app.close()
		return nil, err
	default:
		provider = stripe
	}

	verifier, err := session.NewVerifier(cfg.Session)
	if err != nil {
		app.close()
		return nil, err
	}

	analysisService := analysisservice.New(logger, db,
		analyzer.New(cfg.Analyzer, &http.Client{}),
		app.cache, publisher, videos,
		analysisservice.Options{
			FreeAnalysisLimit: cfg.FreeAnalysisLimit,
			ReleaseOnFailure:  cfg.ReleaseOnFailure,
			CacheTTL:          cfg.AnalysisTTL,
		})
	billingService := billingservice.New(logger, db, provider, publisher, analysisService.FreeAnalysisLimit())

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Analysis:   analysisService,
		Billing:    billingService,
		Verifier:   verifier,
		CookieName: cfg.CookieName,
		Limiter:    middlewarectx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateBurst),
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.ResponseTimeout(),
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run запускает сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
