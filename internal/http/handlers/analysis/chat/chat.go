// Package chat отвечает на вопросы о комментариях готового анализа.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/comment-analytics/internal/http/middlewarectx"
	"github.com/magabrotheeeer/comment-analytics/internal/http/response"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// Handler обработчик POST /analyses/{id}/chat.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service задает вопрос анализатору.
type Service interface {
	Chat(ctx context.Context, userID, analysisID, question string) (*models.ChatResponse, error)
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
// @Summary Вопрос о комментариях
// @Description Анализ должен принадлежать пользователю и быть завершен.
// @Tags Analyses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID анализа"
// @Param request body models.ChatRequest true "Вопрос"
// @Success 200 {object} response.Response{data=models.ChatResponse}
// @Failure 400 {object} response.ErrorResponse "Анализ не завершен"
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /analyses/{id}/chat [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.analysis.chat"
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

	var req models.ChatRequest
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

	id := chi.URLParam(r, "id")
	res, err := h.service.Chat(r.Context(), userID, id, req.Question)
	if err != nil {
		log.Error("chat failed", slog.String("id", id), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
