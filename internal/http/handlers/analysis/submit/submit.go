// Package submit реализует HTTP-обработчик запуска анализа комментариев.
//
// Handler принимает ссылку на видео, передает ее оркестратору анализа и ждет результата.
// Ответ содержит status, id и результат анализа на верхнем уровне.
// При исчерпании лимита FREE возвращается 403 с upgradeRequired.
package submit

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

// Handler управляет HTTP-запросами на запуск анализа.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает оркестратор анализа.
type Service interface {
	Submit(ctx context.Context, userID, videoURL string) (*models.SubmitResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Запустить анализ комментариев
// @Description Проверяет лимит тарифа и ссылку, вызывает анализатор и возвращает результат.
// @Tags Analyses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SubmitRequest true "Ссылка на видео YouTube"
// @Success 200 {object} models.SubmitResult
// @Failure 400 {object} response.ErrorResponse "Некорректная ссылка"
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse "Лимит FREE исчерпан, upgradeRequired=true"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 503 {object} response.ErrorResponse "Анализатор недоступен"
// @Failure 504 {object} response.ErrorResponse "Анализ не уложился во время"
// @Router /analyses [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.analysis.submit"
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

	var req models.SubmitRequest
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

	res, err := h.service.Submit(r.Context(), userID, req.VideoURL)
	if err != nil {
		log.Error("analysis failed", slog.String("user_id", userID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("analysis completed", slog.String("id", res.ID))
	render.JSON(w, r, res)
}
