package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/comment-analytics/internal/migrations"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn)
	require.NoError(t, err)

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя
func (f *TestDataFactory) CreateUser(t *testing.T, id, plan string, analysisCount int) {
	_, err := f.storage.DB.Exec(`INSERT INTO users (id, email, name, plan, analysis_count)
		VALUES ($1, $2, $3, $4, $5)`,
		id, id+"@example.com", "Test "+id, plan, analysisCount)
	require.NoError(t, err)
}

// CreateAnalysis создает анализ с заданным статусом и временем создания
func (f *TestDataFactory) CreateAnalysis(t *testing.T, userID, videoID, status string, createdAt time.Time) string {
	id := uuid.NewString()
	_, err := f.storage.DB.Exec(`INSERT INTO analyses (id, user_id, video_url, video_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		id, userID, "https://www.youtube.com/watch?v="+videoID, videoID, status, createdAt)
	require.NoError(t, err)
	return id
}

// CreateSubscription создает строку подписки
func (f *TestDataFactory) CreateSubscription(t *testing.T, userID, customerID, subscriptionID, plan, status string, periodEnd *time.Time) {
	_, err := f.storage.DB.Exec(`INSERT INTO subscriptions
		(user_id, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, nullString(customerID), nullString(subscriptionID), plan, status, periodEnd)
	require.NoError(t, err)
}

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// VerifyUserPlan проверяет тариф и счетчик пользователя
func (v *TestVerification) VerifyUserPlan(t *testing.T, userID, plan string, analysisCount int) {
	var gotPlan string
	var gotCount int
	err := v.storage.DB.QueryRow(`SELECT plan, analysis_count FROM users WHERE id = $1`, userID).Scan(&gotPlan, &gotCount)
	require.NoError(t, err)
	require.Equal(t, plan, gotPlan)
	require.Equal(t, analysisCount, gotCount)
}

// VerifyAnalysisCount проверяет число анализов пользователя
func (v *TestVerification) VerifyAnalysisCount(t *testing.T, userID string, want int) {
	var count int
	err := v.storage.DB.QueryRow(`SELECT COUNT(*) FROM analyses WHERE user_id = $1`, userID).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, want, count)
}
