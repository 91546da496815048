// Package metrics prometheus-метрики сервиса.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Итоги отправки анализа.
const (
	ResultCompleted = "completed"
	ResultError     = "error"
	ResultRejected  = "rejected"
)

var (
	// AnalysesTotal число отправленных анализов по итогу.
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "comment_analytics",
		Name:      "analyses_total",
		Help:      "Submitted analyses by result.",
	}, []string{"result"})

	// QuotaRejections отказы по лимиту тарифа FREE.
	QuotaRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "comment_analytics",
		Name:      "quota_rejections_total",
		Help:      "Submissions rejected by the free plan limit.",
	})

	// AnalyzerDuration длительность вызовов анализатора.
	AnalyzerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "comment_analytics",
		Name:      "analyzer_request_duration_seconds",
		Help:      "External analyzer call latency.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 180},
	}, []string{"call", "outcome"})

	// WebhookEvents обработанные события Stripe.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "comment_analytics",
		Name:      "billing_webhook_events_total",
		Help:      "Billing webhook events by type.",
	}, []string{"type"})

	// MaintenanceAffected записи, измененные фоновыми задачами.
	MaintenanceAffected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "comment_analytics",
		Name:      "maintenance_affected_total",
		Help:      "Rows changed by scheduled maintenance jobs.",
	}, []string{"job"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "comment_analytics",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveAnalyzer записывает длительность вызова анализатора.
func ObserveAnalyzer(call string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AnalyzerDuration.WithLabelValues(call, outcome).Observe(time.Since(start).Seconds())
}

// Middleware считает длительность запросов по шаблону маршрута chi.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
