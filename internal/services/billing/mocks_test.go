package billing

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	provider "github.com/magabrotheeeer/comment-analytics/internal/billing"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockRepository) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*models.Subscription)
	return s, args.Error(1)
}

func (m *MockRepository) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	return m.Called(ctx, userID, customerID).Error(0)
}

func (m *MockRepository) ApplySubscriptionUpdate(ctx context.Context, upd models.SubscriptionUpdate) (*models.User, error) {
	args := m.Called(ctx, upd)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockRepository) ResetSubscription(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	args := m.Called(ctx, userID, email)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, customerID, userID string) (*provider.CheckoutSession, error) {
	args := m.Called(ctx, customerID, userID)
	s, _ := args.Get(0).(*provider.CheckoutSession)
	return s, args.Error(1)
}

func (m *MockProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*provider.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(*provider.CheckoutSession)
	return s, args.Error(1)
}

func (m *MockProvider) GetSubscription(ctx context.Context, subscriptionID string) (*provider.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	s, _ := args.Get(0).(*provider.Subscription)
	return s, args.Error(1)
}

func (m *MockProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *MockProvider) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) ParseWebhook(payload []byte, signature string) (*provider.Event, error) {
	args := m.Called(payload, signature)
	e, _ := args.Get(0).(*provider.Event)
	return e, args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type deps struct {
	repo      *MockRepository
	provider  *MockProvider
	publisher *MockPublisher
}

func newTestService() (*Service, deps) {
	d := deps{
		repo:      new(MockRepository),
		provider:  new(MockProvider),
		publisher: new(MockPublisher),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, d.repo, d.provider, d.publisher, 1), d
}

func (d deps) assert(t mock.TestingT) {
	d.repo.AssertExpectations(t)
	d.provider.AssertExpectations(t)
	d.publisher.AssertExpectations(t)
}
