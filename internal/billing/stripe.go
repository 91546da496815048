// Package billing адаптер платежного провайдера Stripe.
//
// Наружу отдаются только собственные типы пакета, чтобы сервис оплаты
// не зависел от структур stripe-go и легко подменялся в тестах.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/magabrotheeeer/comment-analytics/internal/config"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// Типы событий вебхука, которые обрабатывает сервис.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// ErrNotConfigured оплата не настроена.
var ErrNotConfigured = errors.New("billing is not configured")

// CheckoutSession сессия оплаты.
type CheckoutSession struct {
	ID             string
	URL            string
	CustomerID     string
	SubscriptionID string
	UserID         string
	Status         string
	PaymentStatus  string
}

// Subscription подписка у провайдера.
type Subscription struct {
	ID               string
	CustomerID       string
	UserID           string
	Status           string
	Plan             string
	CurrentPeriodEnd *time.Time
}

// Update переводит подписку провайдера в изменение для хранилища.
func (s *Subscription) Update(userID string) models.SubscriptionUpdate {
	if userID == "" {
		userID = s.UserID
	}
	return models.SubscriptionUpdate{
		UserID:               userID,
		StripeCustomerID:     s.CustomerID,
		StripeSubscriptionID: s.ID,
		Plan:                 s.Plan,
		Status:               s.Status,
		CurrentPeriodEnd:     s.CurrentPeriodEnd,
	}
}

// Event проверенное событие вебхука.
type Event struct {
	ID           string
	Type         string
	Session      *CheckoutSession
	Subscription *Subscription
}

// Stripe клиент Stripe с настройками тарифа.
type Stripe struct {
	api           *client.API
	priceIDPro    string
	frontendURL   string
	webhookSecret string
}

// NewStripe создает адаптер. Без секретного ключа возвращает ErrNotConfigured.
func NewStripe(cfg config.Billing) (*Stripe, error) {
	if cfg.StripeSecretKey == "" {
		return nil, ErrNotConfigured
	}
	return &Stripe{
		api:           client.New(cfg.StripeSecretKey, nil),
		priceIDPro:    cfg.PriceIDPro,
		frontendURL:   strings.TrimRight(cfg.FrontendURL, "/"),
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreateCustomer создает клиента в Stripe с id пользователя в метаданных.
func (s *Stripe) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	const op = "billing.CreateCustomer"
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata("user_id", userID)

	cust, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession создает сессию оплаты подписки PRO и возвращает ссылку на нее.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, customerID, userID string) (*CheckoutSession, error) {
	const op = "billing.CreateCheckoutSession"
	if s.priceIDPro == "" {
		return nil, fmt.Errorf("%s: %w: price id missing", op, ErrNotConfigured)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(customerID),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceIDPro),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID},
		},
		SuccessURL: stripe.String(s.frontendURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.frontendURL + "/billing/cancel"),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return toCheckoutSession(sess), nil
}

// GetCheckoutSession возвращает сессию оплаты.
func (s *Stripe) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	const op = "billing.GetCheckoutSession"
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return toCheckoutSession(sess), nil
}

// GetSubscription возвращает подписку провайдера.
func (s *Stripe) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	const op = "billing.GetSubscription"
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.toSubscription(sub), nil
}

// CancelSubscription немедленно отменяет подписку.
func (s *Stripe) CancelSubscription(ctx context.Context, subscriptionID string) error {
	const op = "billing.CancelSubscription"
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := s.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Code == stripe.ErrorCodeResourceMissing {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CreatePortalSession возвращает ссылку на портал управления подпиской.
func (s *Stripe) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	const op = "billing.CreatePortalSession"
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.frontendURL + "/settings/billing"),
	}
	params.Context = ctx

	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return sess.URL, nil
}

// ParseWebhook проверяет подпись и разбирает событие вебхука.
// Для неизвестных типов событий Session и Subscription пустые.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (*Event, error) {
	const op = "billing.ParseWebhook"
	if s.webhookSecret == "" {
		return nil, fmt.Errorf("%s: %w: webhook secret missing", op, ErrNotConfigured)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%s: decode session: %w", op, err)
		}
		out.Session = toCheckoutSession(&sess)
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%s: decode subscription: %w", op, err)
		}
		out.Subscription = s.toSubscription(&sub)
	}
	return out, nil
}

func toCheckoutSession(sess *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		UserID:        sess.ClientReferenceID,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
	}
	if out.UserID == "" {
		out.UserID = sess.Metadata["user_id"]
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
	}
	return out
}

func (s *Stripe) toSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:     sub.ID,
		UserID: sub.Metadata["user_id"],
		Status: string(sub.Status),
		Plan:   models.SubscriptionPlanFree,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price != nil && item.Price.ID == s.priceIDPro {
				out.Plan = models.SubscriptionPlanPro
			}
		}
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &t
	}
	return out
}
