// Package usersync создает или обновляет пользователя по данным сессии при первом входе.
package usersync

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

// Service сохраняет пользователя.
type Service interface {
	SyncUser(ctx context.Context, userID, email, name string) (*models.Profile, error)
}

// Handler обработчик POST /me.
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
// @Summary Синхронизировать пользователя
// @Description Создает пользователя с тарифом FREE при первом входе или обновляет email и имя из сессии.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.Profile}
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /me [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.sync"
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
	email, name := middlewarectx.IdentityFrom(r.Context())

	profile, err := h.service.SyncUser(r.Context(), userID, email, name)
	if err != nil {
		log.Error("failed to sync user", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("user synced", slog.String("user_id", userID))
	render.JSON(w, r, response.StatusOKWithData(profile))
}
