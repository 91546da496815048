package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

func TestStorage_UpsertUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	u, err := storage.UpsertUser(ctx, "auth0|1", "a@example.com", "Alice")
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, u.Plan)
	assert.Equal(t, 0, u.AnalysisCount)

	u, err = storage.UpsertUser(ctx, "auth0|1", "", "Alice B")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email, "empty email keeps the stored one")
	assert.Equal(t, "Alice B", u.Name)
}

func TestStorage_GetUser(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		setup   func(t *testing.T, factory *TestDataFactory)
		wantErr error
	}{
		{
			name:   "existing user",
			userID: "u1",
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateUser(t, "u1", models.PlanFree, 0)
			},
		},
		{
			name:    "missing user",
			userID:  "ghost",
			setup:   func(_ *testing.T, _ *TestDataFactory) {},
			wantErr: apperr.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()
			tt.setup(t, NewTestDataFactory(storage))

			u, err := storage.GetUser(context.Background(), tt.userID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.userID, u.ID)
		})
	}
}

func TestStorage_ReserveAnalysisSlot(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	factory := NewTestDataFactory(storage)
	verify := NewTestVerification(storage)
	factory.CreateUser(t, "free", models.PlanFree, 0)
	factory.CreateUser(t, "pro", models.PlanPro, 5)

	u, err := storage.ReserveAnalysisSlot(ctx, "free", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, u.AnalysisCount)
	assert.NotNil(t, u.LastAnalysisAt)

	_, err = storage.ReserveAnalysisSlot(ctx, "free", 1)
	require.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	verify.VerifyUserPlan(t, "free", models.PlanFree, 1)

	u, err = storage.ReserveAnalysisSlot(ctx, "pro", 1)
	require.NoError(t, err)
	assert.Equal(t, 6, u.AnalysisCount)

	_, err = storage.ReserveAnalysisSlot(ctx, "ghost", 1)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, storage.ReleaseAnalysisSlot(ctx, "free"))
	require.NoError(t, storage.ReleaseAnalysisSlot(ctx, "free"))
	verify.VerifyUserPlan(t, "free", models.PlanFree, 0)
}

func TestStorage_ReserveAnalysisSlot_Concurrent(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	NewTestDataFactory(storage).CreateUser(t, "racer", models.PlanFree, 0)

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := storage.ReserveAnalysisSlot(ctx, "racer", 1); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, granted)
	NewTestVerification(storage).VerifyUserPlan(t, "racer", models.PlanFree, 1)
}

func TestStorage_AnalysisLifecycle(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	NewTestDataFactory(storage).CreateUser(t, "u1", models.PlanFree, 0)
	id := uuid.NewString()

	a, err := storage.CreateAnalysis(ctx, "u1", id, "https://youtu.be/abc", "abc")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisProcessing, a.Sentiment.Status)
	assert.Empty(t, a.Comments)

	result := models.AnalyzerResult{
		Comments:   []models.Comment{{Text: "nice", Likes: 2, Sentiment: "positive"}},
		Statistics: models.Statistics{TotalComments: 1, Sentiment: models.SentimentDistribution{Positive: 1}},
		AIAnalysis: models.AIAnalysis{Summary: "people like it", Recommendations: []string{"more"}},
	}
	done, err := storage.CompleteAnalysis(ctx, id, result)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisCompleted, done.Sentiment.Status)
	assert.Equal(t, result.Comments, done.Comments)
	assert.Equal(t, result.Statistics, done.Statistics)

	_, err = storage.FailAnalysis(ctx, id, "late failure")
	require.ErrorIs(t, err, apperr.ErrConflict, "terminal record is never rewritten")

	got, err := storage.GetAnalysis(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisCompleted, got.Sentiment.Status)
	assert.Equal(t, "people like it", got.AIAnalysis.Summary)

	_, err = storage.GetAnalysis(ctx, "someone-else", id)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, storage.SetAnalysisVideo(ctx, id, &models.VideoDetails{Title: "Demo", ViewCount: 10}))
	got, err = storage.GetAnalysis(ctx, "u1", id)
	require.NoError(t, err)
	require.NotNil(t, got.Video)
	assert.Equal(t, "Demo", got.Video.Title)

	reused, err := storage.FindCompletedByVideo(ctx, "u1", "abc")
	require.NoError(t, err)
	assert.Equal(t, id, reused.ID)

	_, err = storage.FindCompletedByVideo(ctx, "u1", "zzz")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStorage_ListAnalyses(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, "u1", models.PlanPro, 0)
	factory.CreateUser(t, "u2", models.PlanPro, 0)
	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := range 3 {
		ids = append(ids, factory.CreateAnalysis(t, "u1", "v"+string(rune('a'+i)), models.AnalysisCompleted, base.Add(time.Duration(i)*time.Minute)))
	}
	factory.CreateAnalysis(t, "u2", "other", models.AnalysisCompleted, base)

	items, err := storage.ListAnalyses(ctx, "u1", 2, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, ids[2], items[0].ID, "newest first")
	assert.Equal(t, ids[1], items[1].ID)

	items, err = storage.ListAnalyses(ctx, "u1", 2, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, ids[0], items[0].ID)

	total, err := storage.CountAnalyses(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestStorage_FailStaleAnalyses(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, "u1", models.PlanFree, 1)
	stale := factory.CreateAnalysis(t, "u1", "old", models.AnalysisProcessing, time.Now().Add(-time.Hour))
	factory.CreateAnalysis(t, "u1", "fresh", models.AnalysisProcessing, time.Now())
	factory.CreateAnalysis(t, "u1", "done", models.AnalysisCompleted, time.Now().Add(-time.Hour))

	failed, err := storage.FailStaleAnalyses(ctx, time.Now().Add(-10*time.Minute), "analysis did not finish in time")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, stale, failed[0].ID)
	assert.Equal(t, "u1@example.com", failed[0].Email)

	got, err := storage.GetAnalysis(ctx, "u1", stale)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisError, got.Sentiment.Status)
	assert.Equal(t, "analysis did not finish in time", got.Sentiment.Message)
}

func TestStorage_SubscriptionFlow(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	NewTestDataFactory(storage).CreateUser(t, "u1", models.PlanFree, 1)
	verify := NewTestVerification(storage)

	require.NoError(t, storage.SetStripeCustomer(ctx, "u1", "cus_1"))

	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
	u, err := storage.ApplySubscriptionUpdate(ctx, models.SubscriptionUpdate{
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Plan:                 models.SubscriptionPlanPro,
		Status:               models.SubscriptionActive,
		CurrentPeriodEnd:     &periodEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, u.Plan)
	verify.VerifyUserPlan(t, "u1", models.PlanPro, 1)

	sub, err := storage.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, periodEnd.Equal(*sub.CurrentPeriodEnd))

	u, err = storage.ApplySubscriptionUpdate(ctx, models.SubscriptionUpdate{
		StripeSubscriptionID: "sub_1",
		Plan:                 models.SubscriptionPlanPro,
		Status:               models.SubscriptionPastDue,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, u.Plan)

	u, err = storage.ResetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, u.Plan)
	sub, err = storage.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCanceled, sub.Status)
	assert.Empty(t, sub.StripeSubscriptionID)
	assert.Equal(t, "cus_1", sub.StripeCustomerID)

	_, err = storage.ResetSubscription(ctx, "nobody")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = storage.ApplySubscriptionUpdate(ctx, models.SubscriptionUpdate{StripeCustomerID: "cus_unknown", Status: "active"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStorage_ExpireLapsedSubscriptions(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	factory := NewTestDataFactory(storage)
	lapsed := time.Now().Add(-72 * time.Hour)
	current := time.Now().Add(72 * time.Hour)
	factory.CreateUser(t, "lapsed", models.PlanPro, 0)
	factory.CreateUser(t, "current", models.PlanPro, 0)
	factory.CreateSubscription(t, "lapsed", "cus_l", "sub_l", models.SubscriptionPlanPro, models.SubscriptionActive, &lapsed)
	factory.CreateSubscription(t, "current", "cus_c", "sub_c", models.SubscriptionPlanPro, models.SubscriptionActive, &current)

	users, err := storage.ExpireLapsedSubscriptions(ctx, time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "lapsed", users[0].ID)

	verify := NewTestVerification(storage)
	verify.VerifyUserPlan(t, "lapsed", models.PlanFree, 0)
	verify.VerifyUserPlan(t, "current", models.PlanPro, 0)

	sub, err := storage.GetSubscription(ctx, "lapsed")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionExpired, sub.Status)
}

func TestCheckDatabaseReady(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	assert.NoError(t, CheckDatabaseReady(storage))
}

func TestStorage_CanceledContext(t *testing.T) {
	storage := &Storage{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := storage.GetUser(ctx, "u1")
	require.ErrorIs(t, err, context.Canceled)
	_, err = storage.ReserveAnalysisSlot(ctx, "u1", 1)
	require.ErrorIs(t, err, context.Canceled)
	err = storage.ReleaseAnalysisSlot(ctx, "u1")
	require.ErrorIs(t, err, context.Canceled)
}
