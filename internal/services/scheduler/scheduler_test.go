package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/comment-analytics/internal/config"
	"github.com/magabrotheeeer/comment-analytics/internal/metrics"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
	"github.com/magabrotheeeer/comment-analytics/internal/storage/repository"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FailStaleAnalyses(ctx context.Context, before time.Time, message string) ([]repository.StaleAnalysis, error) {
	args := m.Called(ctx, before, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.StaleAnalysis), args.Error(1)
}

func (m *MockRepository) ReleaseAnalysisSlot(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockRepository) ExpireLapsedSubscriptions(ctx context.Context, before time.Time) ([]models.User, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(releaseOnFailure bool) (*SchedulerService, *MockRepository, *MockPublisher) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	cfg := config.Scheduler{
		SweepSpec:   "@every 5m",
		StaleAfter:  10 * time.Minute,
		ExpireSpec:  "@hourly",
		ExpireGrace: 48 * time.Hour,
	}
	s := NewSchedulerService(repo, pub, cfg, config.Quota{ReleaseOnFailure: releaseOnFailure}, newNoopLogger())
	s.now = func() time.Time { return fixedNow }
	return s, repo, pub
}

func TestSweepStaleAnalyses(t *testing.T) {
	ctx := context.Background()
	stale := []repository.StaleAnalysis{
		{ID: "a1", UserID: "u1", VideoURL: "https://youtu.be/abc", Email: "ann@example.com"},
		{ID: "a2", UserID: "u2", VideoURL: "https://youtu.be/def"},
	}

	t.Run("fails stale and notifies", func(t *testing.T) {
		s, repo, pub := newTestService(false)
		before := testutil.ToFloat64(metrics.MaintenanceAffected.WithLabelValues(JobSweep))
		repo.On("FailStaleAnalyses", ctx, fixedNow.Add(-10*time.Minute), MsgStale).Return(stale, nil).Once()
		pub.On("Publish", ctx, models.Notification{
			Kind:       models.NotificationAnalysisFinished,
			UserID:     "u1",
			Email:      "ann@example.com",
			AnalysisID: "a1",
			VideoURL:   "https://youtu.be/abc",
			Status:     models.AnalysisError,
			Message:    MsgStale,
		}).Return(nil).Once()

		n, err := s.SweepStaleAnalyses(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.InDelta(t, 2, testutil.ToFloat64(metrics.MaintenanceAffected.WithLabelValues(JobSweep))-before, 1e-9)
		repo.AssertNotCalled(t, "ReleaseAnalysisSlot", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("releases slots when enabled", func(t *testing.T) {
		s, repo, pub := newTestService(true)
		repo.On("FailStaleAnalyses", ctx, mock.Anything, MsgStale).Return(stale, nil).Once()
		repo.On("ReleaseAnalysisSlot", ctx, "u1").Return(nil).Once()
		repo.On("ReleaseAnalysisSlot", ctx, "u2").Return(errors.New("db down")).Once()
		pub.On("Publish", ctx, mock.Anything).Return(errors.New("broker down")).Once()

		n, err := s.SweepStaleAnalyses(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		repo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("nothing stale", func(t *testing.T) {
		s, repo, pub := newTestService(false)
		repo.On("FailStaleAnalyses", ctx, mock.Anything, MsgStale).Return(nil, nil).Once()

		n, err := s.SweepStaleAnalyses(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("repository error", func(t *testing.T) {
		s, repo, _ := newTestService(false)
		repo.On("FailStaleAnalyses", ctx, mock.Anything, MsgStale).Return(nil, errors.New("db down")).Once()

		_, err := s.SweepStaleAnalyses(ctx)
		assert.Error(t, err)
	})
}

func TestExpireSubscriptions(t *testing.T) {
	ctx := context.Background()

	t.Run("downgrades and notifies", func(t *testing.T) {
		s, repo, pub := newTestService(false)
		users := []models.User{
			{ID: "u1", Email: "ann@example.com", Name: "Ann", Plan: models.PlanFree},
			{ID: "u2", Plan: models.PlanFree},
		}
		repo.On("ExpireLapsedSubscriptions", ctx, fixedNow.Add(-48*time.Hour)).Return(users, nil).Once()
		pub.On("Publish", ctx, models.Notification{
			Kind:   models.NotificationPlanExpired,
			UserID: "u1",
			Email:  "ann@example.com",
			Name:   "Ann",
			Plan:   models.PlanFree,
			Status: models.SubscriptionExpired,
		}).Return(nil).Once()

		n, err := s.ExpireSubscriptions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		repo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		s, repo, pub := newTestService(false)
		repo.On("ExpireLapsedSubscriptions", ctx, mock.Anything).Return(nil, errors.New("db down")).Once()

		_, err := s.ExpireSubscriptions(ctx)
		assert.Error(t, err)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})
}

func TestCron(t *testing.T) {
	s, _, _ := newTestService(false)
	c, err := s.Cron(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)

	s.cfg.SweepSpec = "not a spec"
	_, err = s.Cron(context.Background())
	assert.Error(t, err)
}
