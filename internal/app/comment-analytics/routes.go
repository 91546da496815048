// Package commentanalytics собирает HTTP API сервиса аналитики комментариев.
package commentanalytics

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/analysis/chat"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/analysis/compare"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/analysis/list"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/analysis/status"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/analysis/submit"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/billing/checkout"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/billing/details"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/billing/portal"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/billing/unsubscribe"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/billing/verify"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/health"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/user/profile"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/user/usersync"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/video/frame"
	"github.com/magabrotheeeer/comment-analytics/internal/http/handlers/video/summary"
	"github.com/magabrotheeeer/comment-analytics/internal/http/middlewarectx"
	"github.com/magabrotheeeer/comment-analytics/internal/metrics"
	analysisservice "github.com/magabrotheeeer/comment-analytics/internal/services/analysis"
	billingservice "github.com/magabrotheeeer/comment-analytics/internal/services/billing"
)

// Deps зависимости маршрутов.
type Deps struct {
	Analysis   *analysisservice.Service
	Billing    *billingservice.Service
	Verifier   middlewarectx.Verifier
	CookieName string
	Limiter    *middlewarectx.RateLimiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		metrics.Middleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/health", health.New(logger, d.Analysis).ServeHTTP)
		r.Post("/billing/webhook", webhook.New(logger, d.Billing).ServeHTTP)

		// Недоступный анализатор дает 503 раньше проверки сессии
		r.With(
			middlewarectx.AnalyzerReady(d.Analysis, logger),
			middlewarectx.SessionMiddleware(d.Verifier, d.CookieName, logger),
			d.Limiter.Middleware(logger),
		).Post("/analyses", submit.New(logger, d.Analysis).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.SessionMiddleware(d.Verifier, d.CookieName, logger))

			r.Post("/me", usersync.New(logger, d.Analysis).ServeHTTP)
			r.Get("/me", profile.New(logger, d.Analysis).ServeHTTP)

			r.Get("/analyses", list.New(logger, d.Analysis).ServeHTTP)
			r.Get("/analyses/{id}", status.New(logger, d.Analysis).ServeHTTP)

			r.Get("/billing/subscription", details.New(logger, d.Billing).ServeHTTP)
			r.Post("/billing/checkout", checkout.New(logger, d.Billing).ServeHTTP)
			r.Post("/billing/verify", verify.New(logger, d.Billing).ServeHTTP)
			r.Post("/billing/unsubscribe", unsubscribe.New(logger, d.Billing).ServeHTTP)
			r.Post("/billing/portal", portal.New(logger, d.Billing).ServeHTTP)

			// Дорогие вызовы анализатора
			r.Group(func(r chi.Router) {
				r.Use(d.Limiter.Middleware(logger))
				r.Post("/analyses/compare", compare.New(logger, d.Analysis).ServeHTTP)
				r.Post("/analyses/{id}/chat", chat.New(logger, d.Analysis).ServeHTTP)
				r.Post("/videos/frame", frame.New(logger, d.Analysis).ServeHTTP)
				r.Post("/videos/summary", summary.New(logger, d.Analysis).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
