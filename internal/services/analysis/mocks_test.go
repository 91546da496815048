package analysis

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) UpsertUser(ctx context.Context, id, email, name string) (*models.User, error) {
	args := m.Called(ctx, id, email, name)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockRepository) ReserveAnalysisSlot(ctx context.Context, userID string, freeLimit int) (*models.User, error) {
	args := m.Called(ctx, userID, freeLimit)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockRepository) ReleaseAnalysisSlot(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockRepository) CreateAnalysis(ctx context.Context, userID, id, videoURL, videoID string) (*models.Analysis, error) {
	args := m.Called(ctx, userID, id, videoURL, videoID)
	a, _ := args.Get(0).(*models.Analysis)
	return a, args.Error(1)
}

func (m *MockRepository) GetAnalysis(ctx context.Context, userID, id string) (*models.Analysis, error) {
	args := m.Called(ctx, userID, id)
	a, _ := args.Get(0).(*models.Analysis)
	return a, args.Error(1)
}

func (m *MockRepository) CompleteAnalysis(ctx context.Context, id string, result models.AnalyzerResult) (*models.Analysis, error) {
	args := m.Called(ctx, id, result)
	a, _ := args.Get(0).(*models.Analysis)
	return a, args.Error(1)
}

func (m *MockRepository) FailAnalysis(ctx context.Context, id, message string) (*models.Analysis, error) {
	args := m.Called(ctx, id, message)
	a, _ := args.Get(0).(*models.Analysis)
	return a, args.Error(1)
}

func (m *MockRepository) SetAnalysisVideo(ctx context.Context, id string, video *models.VideoDetails) error {
	return m.Called(ctx, id, video).Error(0)
}

func (m *MockRepository) ListAnalyses(ctx context.Context, userID string, limit, offset int) ([]models.AnalysisSummary, error) {
	args := m.Called(ctx, userID, limit, offset)
	items, _ := args.Get(0).([]models.AnalysisSummary)
	return items, args.Error(1)
}

func (m *MockRepository) CountAnalyses(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) FindCompletedByVideo(ctx context.Context, userID, videoID string) (*models.Analysis, error) {
	args := m.Called(ctx, userID, videoID)
	a, _ := args.Get(0).(*models.Analysis)
	return a, args.Error(1)
}

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAnalyzer) Analyze(ctx context.Context, videoURL, analysisID string) (*models.AnalyzerResult, error) {
	args := m.Called(ctx, videoURL, analysisID)
	r, _ := args.Get(0).(*models.AnalyzerResult)
	return r, args.Error(1)
}

func (m *MockAnalyzer) Chat(ctx context.Context, question, analysisID string) (*models.ChatResponse, error) {
	args := m.Called(ctx, question, analysisID)
	r, _ := args.Get(0).(*models.ChatResponse)
	return r, args.Error(1)
}

func (m *MockAnalyzer) ExtractFrame(ctx context.Context, youtubeURL, at string) ([]byte, error) {
	args := m.Called(ctx, youtubeURL, at)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockAnalyzer) Summarize(ctx context.Context, req models.SummaryRequest) (*models.SummaryResponse, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*models.SummaryResponse)
	return r, args.Error(1)
}

func (m *MockAnalyzer) Complete(ctx context.Context, prompt string) (json.RawMessage, error) {
	args := m.Called(ctx, prompt)
	r, _ := args.Get(0).(json.RawMessage)
	return r, args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type MockVideos struct {
	mock.Mock
}

func (m *MockVideos) VideoDetails(ctx context.Context, videoID string) (*models.VideoDetails, error) {
	args := m.Called(ctx, videoID)
	v, _ := args.Get(0).(*models.VideoDetails)
	return v, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type deps struct {
	repo      *MockRepository
	analyzer  *MockAnalyzer
	cache     *MockCache
	publisher *MockPublisher
}

func newTestService(opts Options) (*Service, deps) {
	d := deps{
		repo:      new(MockRepository),
		analyzer:  new(MockAnalyzer),
		cache:     new(MockCache),
		publisher: new(MockPublisher),
	}
	svc := New(newNoopLogger(), d.repo, d.analyzer, d.cache, d.publisher, nil, opts)
	svc.newID = func() string { return testID }
	return svc, d
}

func (d deps) assert(t mock.TestingT) {
	d.repo.AssertExpectations(t)
	d.analyzer.AssertExpectations(t)
	d.cache.AssertExpectations(t)
	d.publisher.AssertExpectations(t)
}
