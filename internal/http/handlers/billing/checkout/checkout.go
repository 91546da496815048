// Package checkout создает сессию оплаты тарифа PRO.
package checkout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/comment-analytics/internal/http/middlewarectx"
	"github.com/magabrotheeeer/comment-analytics/internal/http/response"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// Service сервис оплаты.
type Service interface {
	CreateCheckout(ctx context.Context, userID string) (*models.CheckoutResponse, error)
}

// Handler обработчик POST /billing/checkout.
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
// @Summary Оплатить тариф PRO
// @Description Возвращает ссылку на страницу оплаты Stripe.
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.CheckoutResponse}
// @Failure 401 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Подписка уже активна"
// @Failure 503 {object} response.ErrorResponse "Оплата не настроена"
// @Router /billing/checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.checkout"
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

	res, err := h.service.CreateCheckout(r.Context(), userID)
	if err != nil {
		log.Error("failed to create checkout session", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
