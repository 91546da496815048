// Package main Comment Analytics API
//
// @title           Comment Analytics API
// @version         1.0
// @description     API анализа комментариев YouTube: тональность, темы, сравнение видео и подписка PRO.

// @contact.name   API Support
// @contact.email  support@comment-analytics.dev

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session JWT.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/magabrotheeeer/comment-analytics/docs"
	commentanalytics "github.com/magabrotheeeer/comment-analytics/internal/app/comment-analytics"
	"github.com/magabrotheeeer/comment-analytics/internal/config"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.SetupLogger(cfg.Env)

	logger.Info("starting comment-analytics", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := commentanalytics.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("comment-analytics stopped gracefully")
}
