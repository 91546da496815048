package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	provider "github.com/magabrotheeeer/comment-analytics/internal/billing"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/metrics"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

const testUser = "google-oauth2|42"

func freeUser() *models.User {
	return &models.User{ID: testUser, Email: "ann@example.com", Name: "Ann", Plan: models.PlanFree, AnalysisCount: 1}
}

func proUser() *models.User {
	u := freeUser()
	u.Plan = models.PlanPro
	return u
}

func planChanged(u *models.User, status string) models.Notification {
	return models.Notification{
		Kind:   models.NotificationPlanChanged,
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Plan:   u.Plan,
		Status: status,
	}
}

func TestCreateCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("creates customer on first checkout", func(t *testing.T) {
		svc, d := newTestService()
		d.repo.On("GetUser", ctx, testUser).Return(freeUser(), nil)
		d.repo.On("GetSubscription", ctx, testUser).Return(nil, apperr.ErrNotFound)
		d.provider.On("CreateCustomer", ctx, testUser, "ann@example.com").Return("cus_1", nil)
		d.repo.On("SetStripeCustomer", ctx, testUser, "cus_1").Return(nil)
		d.provider.On("CreateCheckoutSession", ctx, "cus_1", testUser).
			Return(&provider.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}, nil)

		res, err := svc.CreateCheckout(ctx, testUser)
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.stripe.com/cs_1", res.URL)
		d.assert(t)
	})

	t.Run("reuses existing customer", func(t *testing.T) {
		svc, d := newTestService()
		d.repo.On("GetUser", ctx, testUser).Return(freeUser(), nil)
		d.repo.On("GetSubscription", ctx, testUser).
			Return(&models.Subscription{UserID: testUser, StripeCustomerID: "cus_1"}, nil)
		d.provider.On("CreateCheckoutSession", ctx, "cus_1", testUser).
			Return(&provider.CheckoutSession{ID: "cs_2", URL: "u"}, nil)

		_, err := svc.CreateCheckout(ctx, testUser)
		require.NoError(t, err)
		d.provider.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything)
		d.assert(t)
	})

	t.Run("already pro", func(t *testing.T) {
		svc, d := newTestService()
		d.repo.On("GetUser", ctx, testUser).Return(proUser(), nil)

		_, err := svc.CreateCheckout(ctx, testUser)
		assert.ErrorIs(t, err, apperr.ErrConflict)
		d.assert(t)
	})

	t.Run("provider error", func(t *testing.T) {
		svc, d := newTestService()
		d.repo.On("GetUser", ctx, testUser).Return(freeUser(), nil)
		d.repo.On("GetSubscription", ctx, testUser).
			Return(&models.Subscription{UserID: testUser, StripeCustomerID: "cus_1"}, nil)
		d.provider.On("CreateCheckoutSession", ctx, "cus_1", testUser).Return(nil, errors.New("stripe down"))

		_, err := svc.CreateCheckout(ctx, testUser)
		assert.Error(t, err)
		d.assert(t)
	})
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()
	payload := []byte(`{}`)

	t.Run("invalid signature", func(t *testing.T) {
		svc, d := newTestService()
		d.provider.On("ParseWebhook", payload, "bad").Return(nil, errors.New("signature mismatch"))

		err := svc.HandleWebhook(ctx, payload, "bad")
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		d.assert(t)
	})

	t.Run("checkout completed upgrades user", func(t *testing.T) {
		svc, d := newTestService()
		before := testutil.ToFloat64(metrics.WebhookEvents.WithLabelValues(provider.EventCheckoutCompleted))
		d.provider.On("ParseWebhook", payload, "sig").Return(&provider.Event{
			ID:      "evt_1",
			Type:    provider.EventCheckoutCompleted,
			Session: &provider.CheckoutSession{ID: "cs_1", UserID: testUser, CustomerID: "cus_1", SubscriptionID: "sub_1"},
		}, nil)
		d.provider.On("GetSubscription", ctx, "sub_1").Return(&provider.Subscription{
			ID: "sub_1", Status: models.SubscriptionActive, Plan: models.SubscriptionPlanPro,
		}, nil)
		upd := models.SubscriptionUpdate{
			UserID:               testUser,
			StripeCustomerID:     "cus_1",
			StripeSubscriptionID: "sub_1",
			Plan:                 models.SubscriptionPlanPro,
			Status:               models.SubscriptionActive,
		}
		d.repo.On("ApplySubscriptionUpdate", ctx, upd).Return(proUser(), nil)
		d.publisher.On("Publish", ctx, planChanged(proUser(), models.SubscriptionActive)).Return(nil)

		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))
		after := testutil.ToFloat64(metrics.WebhookEvents.WithLabelValues(provider.EventCheckoutCompleted))
		assert.InDelta(t, 1, after-before, 1e-9)
		d.assert(t)
	})

	t.Run("subscription deleted downgrades user", func(t *testing.T) {
		svc, d := newTestService()
		d.provider.On("ParseWebhook", payload, "sig").Return(&provider.Event{
			ID:   "evt_2",
			Type: provider.EventSubscriptionDeleted,
			Subscription: &provider.Subscription{
				ID: "sub_1", CustomerID: "cus_1", Status: models.SubscriptionCanceled, Plan: models.SubscriptionPlanPro,
			},
		}, nil)
		d.repo.On("ApplySubscriptionUpdate", ctx, mock.MatchedBy(func(u models.SubscriptionUpdate) bool {
			return u.UserID == "" && u.StripeSubscriptionID == "sub_1" && u.Status == models.SubscriptionCanceled
		})).Return(freeUser(), nil)
		d.publisher.On("Publish", ctx, planChanged(freeUser(), models.SubscriptionCanceled)).Return(nil)

		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))
		d.assert(t)
	})

	t.Run("unknown customer acknowledged", func(t *testing.T) {
		svc, d := newTestService()
		d.provider.On("ParseWebhook", payload, "sig").Return(&provider.Event{
			Type:         provider.EventSubscriptionUpdated,
			Subscription: &provider.Subscription{ID: "sub_x", CustomerID: "cus_x"},
		}, nil)
		d.repo.On("ApplySubscriptionUpdate", ctx, mock.Anything).Return(nil, apperr.ErrNotFound)

		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))
		d.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		d.assert(t)
	})

	t.Run("unhandled event type ignored", func(t *testing.T) {
		svc, d := newTestService()
		d.provider.On("ParseWebhook", payload, "sig").Return(&provider.Event{ID: "evt_3", Type: "invoice.paid"}, nil)

		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))
		d.assert(t)
	})

	t.Run("publish failure does not fail webhook", func(t *testing.T) {
		svc, d := newTestService()
		d.provider.On("ParseWebhook", payload, "sig").Return(&provider.Event{
			Type:         provider.EventSubscriptionUpdated,
			Subscription: &provider.Subscription{ID: "sub_1", Status: models.SubscriptionActive},
		}, nil)
		d.repo.On("ApplySubscriptionUpdate", ctx, mock.Anything).Return(proUser(), nil)
		d.publisher.On("Publish", ctx, mock.Anything).Return(errors.New("broker down"))

		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))
		d.assert(t)
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("applies paid session", func(t *testing.T) {
		svc, d := newTestService()
		d.provider.On("GetCheckoutSession", ctx, "cs_1").
			Return(&provider.CheckoutSession{ID: "cs_1", UserID: testUser, CustomerID: "cus_1", SubscriptionID: "sub_1"}, nil)
		d.provider.On("GetSubscription", ctx, "sub_1").Return(&provider.Subscription{
			ID: "sub_1", CustomerID: "cus_1", Status: models.SubscriptionActive, Plan: models.SubscriptionPlanPro,
		}, nil)
		d.repo.On("ApplySubscriptionUpdate", ctx, mock.MatchedBy(func(u models.SubscriptionUpdate) bool {
			return u.UserID == testUser && u.StripeSubscriptionID == "sub_1"
		})).Return(proUser(), nil)
		d.publisher.On("Publish", ctx, mock.Anything).Return(nil)
		d.repo.On("GetUser", ctx, testUser).Return(proUser(), nil)
		d.repo.On("GetSubscription", ctx, testUser).Return(&models.Subscription{
			UserID: testUser, Plan: models.SubscriptionPlanPro, Status: models.SubscriptionActive,
		}, nil)

		res, err := svc.Verify(ctx, testUser, "cs_1")
		require.NoError(t, err)
		assert.Equal(t, models.PlanPro, res.Plan)
		assert.Equal(t, -1, res.RemainingFree)
		d.assert(t)
	})

	t.Run("session of another user", func(t *testing.T) {
		svc, d := newTestService()
		d.provider.On("GetCheckoutSession", ctx, "cs_1").
			Return(&provider.CheckoutSession{ID: "cs_1", UserID: "someone-else", SubscriptionID: "sub_1"}, nil)

		_, err := svc.Verify(ctx, testUser, "cs_1")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		d.assert(t)
	})

	t.Run("unpaid session", func(t *testing.T) {
		svc, d := newTestService()
		d.provider.On("GetCheckoutSession", ctx, "cs_1").
			Return(&provider.CheckoutSession{ID: "cs_1", UserID: testUser}, nil)

		_, err := svc.Verify(ctx, testUser, "cs_1")
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		d.assert(t)
	})
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels and resets", func(t *testing.T) {
		svc, d := newTestService()
		d.repo.On("GetSubscription", ctx, testUser).Return(&models.Subscription{
			UserID: testUser, StripeSubscriptionID: "sub_1", Status: models.SubscriptionActive,
		}, nil).Once()
		d.provider.On("CancelSubscription", ctx, "sub_1").Return(nil)
		d.repo.On("ResetSubscription", ctx, testUser).Return(freeUser(), nil)
		d.publisher.On("Publish", ctx, planChanged(freeUser(), models.SubscriptionCanceled)).Return(nil)
		d.repo.On("GetUser", ctx, testUser).Return(freeUser(), nil)
		d.repo.On("GetSubscription", ctx, testUser).Return(&models.Subscription{
			UserID: testUser, Plan: models.SubscriptionPlanFree, Status: models.SubscriptionCanceled,
		}, nil).Once()

		res, err := svc.Unsubscribe(ctx, testUser)
		require.NoError(t, err)
		assert.Equal(t, models.PlanFree, res.Plan)
		assert.Equal(t, 0, res.RemainingFree)
		d.assert(t)
	})

	t.Run("nothing to cancel", func(t *testing.T) {
		svc, d := newTestService()
		d.repo.On("GetSubscription", ctx, testUser).Return(&models.Subscription{UserID: testUser}, nil)

		_, err := svc.Unsubscribe(ctx, testUser)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		d.assert(t)
	})
}

func TestDetails_DefaultsWithoutSubscription(t *testing.T) {
	ctx := context.Background()
	svc, d := newTestService()
	u := freeUser()
	u.AnalysisCount = 0
	d.repo.On("GetUser", ctx, testUser).Return(u, nil)
	d.repo.On("GetSubscription", ctx, testUser).Return(nil, apperr.ErrNotFound)

	res, err := svc.Details(ctx, testUser)
	require.NoError(t, err)
	require.NotNil(t, res.Subscription)
	assert.Equal(t, models.SubscriptionInactive, res.Subscription.Status)
	assert.Equal(t, models.PlanFree, res.Plan)
	assert.Equal(t, 1, res.RemainingFree)
	d.assert(t)
}

func TestPortal(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		svc, d := newTestService()
		d.repo.On("GetSubscription", ctx, testUser).Return(&models.Subscription{StripeCustomerID: "cus_1"}, nil)
		d.provider.On("CreatePortalSession", ctx, "cus_1").Return("https://billing.stripe.com/p", nil)

		res, err := svc.Portal(ctx, testUser)
		require.NoError(t, err)
		assert.Equal(t, "https://billing.stripe.com/p", res.URL)
		d.assert(t)
	})

	t.Run("no customer", func(t *testing.T) {
		svc, d := newTestService()
		d.repo.On("GetSubscription", ctx, testUser).Return(&models.Subscription{}, nil)

		_, err := svc.Portal(ctx, testUser)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		d.assert(t)
	})
}

func TestNotConfigured(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	svc := New(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, nil, new(MockPublisher), 1)

	_, err := svc.CreateCheckout(ctx, testUser)
	assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
	assert.ErrorIs(t, svc.HandleWebhook(ctx, nil, ""), apperr.ErrServiceUnavailable)
	_, err = svc.Portal(ctx, testUser)
	assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)

	repo.On("GetUser", ctx, testUser).Return(freeUser(), nil)
	repo.On("GetSubscription", ctx, testUser).Return(nil, apperr.ErrNotFound)
	_, err = svc.Details(ctx, testUser)
	assert.NoError(t, err)
}
