// Package health отдает состояние сервиса и доступность внешнего анализатора.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/comment-analytics/internal/http/response"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
)

// Service проверка анализатора.
type Service interface {
	AnalyzerHealth(ctx context.Context) error
}

// Handler обработчик GET /health.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Состояние сервиса
// @Description Всегда 200, пока процесс жив. Поле analyzer показывает доступность анализатора.
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	analyzer := "ok"
	if err := h.service.AnalyzerHealth(r.Context()); err != nil {
		h.log.Warn("analyzer is unavailable", slog.String("op", op), sl.Err(err))
		analyzer = "unavailable"
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status":   "ok",
		"analyzer": analyzer,
	}))
}
