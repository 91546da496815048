// Package compare реализует HTTP-обработчик сравнения двух видео.
//
// Сравнить можно два готовых анализа по id или две ссылки. Для ссылок без готового
// анализа запускается новый анализ, который расходует лимит как обычный запуск.
package compare

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/comment-analytics/internal/http/middlewarectx"
	"github.com/magabrotheeeer/comment-analytics/internal/http/response"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// Handler обработчик POST /analyses/compare.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service сравнивает два видео.
type Service interface {
	Compare(ctx context.Context, userID string, req models.CompareRequest) (*models.CompareResult, error)
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сравнить два видео
// @Description Если модель не ответила, возвращается degraded=true с сообщением о невозможности сравнения.
// @Tags Analyses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CompareRequest true "Две ссылки или два id анализов"
// @Success 200 {object} models.CompareResult
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse "Лимит FREE исчерпан, upgradeRequired=true"
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /analyses/compare [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.analysis.compare"
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

	var req models.CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			log.Warn("validation failed", sl.Err(err))
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
	}

	res, err := h.service.Compare(r.Context(), userID, req)
	if err != nil {
		log.Error("comparison failed", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("videos compared", slog.Bool("degraded", res.Degraded))
	render.JSON(w, r, res)
}
