// Package billing сверяет состояние подписок Stripe с тарифом пользователя.
//
// Тариф пользователя меняется только здесь и только вместе с записью подписки
// в одной транзакции хранилища.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	provider "github.com/magabrotheeeer/comment-analytics/internal/billing"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/metrics"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// ErrNotConfigured оплата не настроена.
var ErrNotConfigured = fmt.Errorf("%w: billing is not configured", apperr.ErrServiceUnavailable)

// Repository хранилище пользователей и подписок.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	SetStripeCustomer(ctx context.Context, userID, customerID string) error
	ApplySubscriptionUpdate(ctx context.Context, upd models.SubscriptionUpdate) (*models.User, error)
	ResetSubscription(ctx context.Context, userID string) (*models.User, error)
}

// Provider платежный провайдер.
type Provider interface {
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, userID string) (*provider.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*provider.CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*provider.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
	ParseWebhook(payload []byte, signature string) (*provider.Event, error)
}

// Publisher очередь уведомлений.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Service сервис оплаты.
type Service struct {
	repo      Repository
	provider  Provider
	publisher Publisher
	freeLimit int
	log       *slog.Logger
}

// New создает сервис. provider может быть nil, тогда операции оплаты недоступны,
// но Details продолжает работать.
func New(log *slog.Logger, repo Repository, p Provider, publisher Publisher, freeLimit int) *Service {
	return &Service{
		repo:      repo,
		provider:  p,
		publisher: publisher,
		freeLimit: freeLimit,
		log:       log,
	}
}

// CreateCheckout создает сессию оплаты тарифа PRO и возвращает ссылку на нее.
func (s *Service) CreateCheckout(ctx context.Context, userID string) (*models.CheckoutResponse, error) {
	const op = "billing.CreateCheckout"
	if s.provider == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.IsPro() {
		return nil, fmt.Errorf("%s: %w: already subscribed", op, apperr.ErrConflict)
	}

	sub, err := s.subscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	customerID := sub.StripeCustomerID
	if customerID == "" {
		customerID, err = s.provider.CreateCustomer(ctx, userID, user.Email)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.repo.SetStripeCustomer(ctx, userID, customerID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, customerID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("checkout session created", slog.String("op", op), slog.String("user_id", userID), slog.String("session_id", sess.ID))
	return &models.CheckoutResponse{URL: sess.URL}, nil
}

// HandleWebhook проверяет подпись события и применяет изменение подписки.
// Неизвестные события и события неизвестных клиентов подтверждаются без изменений.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "billing.HandleWebhook"
	if s.provider == nil {
		return fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, apperr.ErrInvalidInput, err)
	}
	log := s.log.With(slog.String("op", op), slog.String("event_id", event.ID), slog.String("type", event.Type))
	metrics.WebhookEvents.WithLabelValues(event.Type).Inc()

	var upd models.SubscriptionUpdate
	switch {
	case event.Session != nil:
		if event.Session.SubscriptionID == "" {
			log.Info("checkout without subscription ignored")
			return nil
		}
		sub, err := s.provider.GetSubscription(ctx, event.Session.SubscriptionID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		upd = sub.Update(event.Session.UserID)
		if upd.StripeCustomerID == "" {
			upd.StripeCustomerID = event.Session.CustomerID
		}
	case event.Subscription != nil:
		upd = event.Subscription.Update("")
	default:
		log.Debug("event ignored")
		return nil
	}

	user, err := s.repo.ApplySubscriptionUpdate(ctx, upd)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Warn("subscription event for unknown user", slog.String("customer_id", upd.StripeCustomerID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("subscription updated", slog.String("user_id", user.ID), slog.String("plan", user.Plan), slog.String("status", upd.Status))
	s.notify(ctx, user, upd.Status)
	return nil
}

// Verify подтверждает оплату по id сессии после возврата пользователя со страницы оплаты.
// Используется, если вебхук еще не пришел.
func (s *Service) Verify(ctx context.Context, userID, sessionID string) (*models.SubscriptionDetails, error) {
	const op = "billing.Verify"
	if s.provider == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}
	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sess.UserID != userID {
		return nil, fmt.Errorf("%s: %w: checkout session", op, apperr.ErrNotFound)
	}
	if sess.SubscriptionID == "" {
		return nil, fmt.Errorf("%s: %w: checkout is not completed", op, apperr.ErrInvalidInput)
	}

	sub, err := s.provider.GetSubscription(ctx, sess.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	upd := sub.Update(userID)
	if upd.StripeCustomerID == "" {
		upd.StripeCustomerID = sess.CustomerID
	}
	user, err := s.repo.ApplySubscriptionUpdate(ctx, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.notify(ctx, user, upd.Status)
	return s.Details(ctx, userID)
}

// Unsubscribe отменяет подписку у провайдера и возвращает пользователя на FREE.
func (s *Service) Unsubscribe(ctx context.Context, userID string) (*models.SubscriptionDetails, error) {
	const op = "billing.Unsubscribe"
	if s.provider == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.StripeSubscriptionID == "" {
		return nil, fmt.Errorf("%s: %w: no active subscription", op, apperr.ErrNotFound)
	}

	if err := s.provider.CancelSubscription(ctx, sub.StripeSubscriptionID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.repo.ResetSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription canceled", slog.String("op", op), slog.String("user_id", userID))
	s.notify(ctx, user, models.SubscriptionCanceled)
	return s.Details(ctx, userID)
}

// Details возвращает подписку, тариф и использование лимита.
func (s *Service) Details(ctx context.Context, userID string) (*models.SubscriptionDetails, error) {
	const op = "billing.Details"
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub, err := s.subscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	profile := models.NewProfile(*user, s.freeLimit)
	return &models.SubscriptionDetails{
		Subscription:  sub,
		Plan:          user.Plan,
		AnalysisCount: user.AnalysisCount,
		RemainingFree: profile.RemainingFree,
	}, nil
}

// Portal возвращает ссылку на портал Stripe для управления подпиской.
func (s *Service) Portal(ctx context.Context, userID string) (*models.CheckoutResponse, error) {
	const op = "billing.Portal"
	if s.provider == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.StripeCustomerID == "" {
		return nil, fmt.Errorf("%s: %w: no billing account", op, apperr.ErrNotFound)
	}
	url, err := s.provider.CreatePortalSession(ctx, sub.StripeCustomerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.CheckoutResponse{URL: url}, nil
}

// subscription возвращает запись подписки или значения по умолчанию, если ее еще нет.
func (s *Service) subscription(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return &models.Subscription{
			UserID: userID,
			Plan:   models.SubscriptionPlanFree,
			Status: models.SubscriptionInactive,
		}, nil
	}
	return sub, err
}

func (s *Service) notify(ctx context.Context, user *models.User, status string) {
	if user == nil || user.Email == "" {
		return
	}
	n := models.Notification{
		Kind:   models.NotificationPlanChanged,
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Plan:   user.Plan,
		Status: status,
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.log.Warn("failed to publish notification", slog.String("user_id", user.ID), sl.Err(err))
	}
}
