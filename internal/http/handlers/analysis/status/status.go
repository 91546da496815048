// Package status отдает состояние и результат анализа по id.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/comment-analytics/internal/http/middlewarectx"
	"github.com/magabrotheeeer/comment-analytics/internal/http/response"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// Service читает анализ.
type Service interface {
	Status(ctx context.Context, userID, id string) (*models.Analysis, error)
}

// Handler обработчик GET /analyses/{id}.
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
// @Summary Статус анализа
// @Description processing до завершения, затем один и тот же терминальный результат.
// @Tags Analyses
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID анализа"
// @Success 200 {object} response.Response{data=models.Analysis}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /analyses/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.analysis.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user id not found in context")
		response.WriteError(w, r, apperr.ErrUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")

	a, err := h.service.Status(r.Context(), userID, id)
	if err != nil {
		log.Warn("failed to read analysis", slog.String("id", id), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(a))
}
