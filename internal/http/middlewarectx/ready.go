package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/comment-analytics/internal/http/response"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
)

// HealthChecker сообщает, готов ли внешний анализатор принимать запросы.
type HealthChecker interface {
	AnalyzerHealth(ctx context.Context) error
}

// AnalyzerReady отвечает 503, пока анализатор недоступен.
// Ставится перед SessionMiddleware, поэтому недоступность видна и без сессии.
func AnalyzerReady(checker HealthChecker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := checker.AnalyzerHealth(r.Context()); err != nil {
				log.Warn("analyzer not ready", slog.String("path", r.URL.Path), sl.Err(err))
				response.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
