package models

import "time"

// Тарифы подписки у платежного провайдера.
const (
	SubscriptionPlanFree = "free"
	SubscriptionPlanPro  = "pro"
)

// Статусы подписки.
const (
	SubscriptionInactive = "inactive"
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
	SubscriptionExpired  = "expired"
)

// Subscription связь пользователя с подпиской в Stripe.
type Subscription struct {
	UserID               string     `json:"user_id"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	Plan                 string     `json:"plan"`
	Status               string     `json:"status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// PlanFor выводит тариф пользователя из состояния подписки.
// PRO выдается только активной подписке на план pro.
func PlanFor(status, plan string) string {
	if status == SubscriptionActive && plan == SubscriptionPlanPro {
		return PlanPro
	}
	return PlanFree
}

// SubscriptionUpdate изменение подписки, полученное от провайдера.
type SubscriptionUpdate struct {
	UserID               string
	StripeCustomerID     string
	StripeSubscriptionID string
	Plan                 string
	Status               string
	CurrentPeriodEnd     *time.Time
}

// SubscriptionDetails ответ GET /billing/subscription.
type SubscriptionDetails struct {
	Subscription  *Subscription `json:"subscription,omitempty"`
	Plan          string        `json:"plan"`
	AnalysisCount int           `json:"analysis_count"`
	RemainingFree int           `json:"remaining_free"`
}

// CheckoutResponse ссылка на страницу оплаты.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// VerifyRequest тело POST /billing/verify.
type VerifyRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}
