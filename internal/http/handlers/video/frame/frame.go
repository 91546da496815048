// Package frame отдает кадр видео YouTube в JPEG.
package frame

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/comment-analytics/internal/http/response"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// Handler обработчик POST /videos/frame.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service извлекает кадр.
type Service interface {
	ExtractFrame(ctx context.Context, req models.FrameRequest) ([]byte, error)
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
// @Summary Кадр видео
// @Description Время в формате SS, MM:SS или HH:MM:SS. Width уменьшает кадр с сохранением пропорций.
// @Tags Videos
// @Accept json
// @Produce image/jpeg
// @Security BearerAuth
// @Param request body models.FrameRequest true "Ссылка, время и ширина"
// @Success 200 {file} binary
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 504 {object} response.ErrorResponse
// @Router /videos/frame [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.video.frame"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.FrameRequest
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

	img, err := h.service.ExtractFrame(r.Context(), req)
	if err != nil {
		log.Error("failed to extract frame", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		log.Warn("failed to write frame", sl.Err(err))
	}
}
