// Package list отдает историю анализов пользователя постранично.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/comment-analytics/internal/http/middlewarectx"
	"github.com/magabrotheeeer/comment-analytics/internal/http/response"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// Service читает историю.
type Service interface {
	List(ctx context.Context, userID string, page, pageSize int) (*models.AnalysisPage, error)
}

// Handler обработчик GET /analyses.
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
// @Summary История анализов
// @Description Новые сверху. Некорректные page и pageSize заменяются значениями по умолчанию.
// @Tags Analyses
// @Produce json
// @Security BearerAuth
// @Param page query int false "Номер страницы, с 1"
// @Param pageSize query int false "Размер страницы, 1..50"
// @Success 200 {object} response.Response{data=models.AnalysisPage}
// @Failure 401 {object} response.ErrorResponse
// @Router /analyses [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.analysis.list"
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

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 0
	}
	pageSize, err := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if err != nil {
		pageSize = 0
	}

	res, err := h.service.List(r.Context(), userID, page, pageSize)
	if err != nil {
		log.Error("failed to list analyses", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("list analyses", slog.Int("count", len(res.Items)), slog.Int("total", res.Total))
	render.JSON(w, r, response.StatusOKWithData(res))
}
