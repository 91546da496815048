// Package verify подтверждает оплату по id сессии Stripe после возврата пользователя.
package verify

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

// Service сервис оплаты.
type Service interface {
	Verify(ctx context.Context, userID, sessionID string) (*models.SubscriptionDetails, error)
}

// Handler обработчик POST /billing/verify.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
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
// @Summary Подтвердить оплату
// @Description Применяет подписку из сессии оплаты, если вебхук еще не пришел.
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.VerifyRequest true "ID сессии оплаты"
// @Success 200 {object} response.Response{data=models.SubscriptionDetails}
// @Failure 400 {object} response.ErrorResponse "Оплата не завершена"
// @Failure 404 {object} response.ErrorResponse "Сессия принадлежит другому пользователю"
// @Failure 422 {object} response.ErrorResponse
// @Router /billing/verify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.verify"
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

	var req models.VerifyRequest
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

	res, err := h.service.Verify(r.Context(), userID, req.SessionID)
	if err != nil {
		log.Error("failed to verify checkout", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}
	log.Info("checkout verified", slog.String("user_id", userID), slog.String("plan", res.Plan))
	render.JSON(w, r, response.StatusOKWithData(res))
}
