package compare

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/comment-analytics/internal/http/middlewarectx"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Compare(ctx context.Context, userID string, req models.CompareRequest) (*models.CompareResult, error) {
	args := m.Called(ctx, userID, req)
	res, _ := args.Get(0).(*models.CompareResult)
	return res, args.Error(1)
}

func TestCompareHandler(t *testing.T) {
	ids := []string{"6f1c2a4e-8b7d-4c1e-9a53-2d0f6b8e1a11", "0b9e3c1d-2f4a-4e5b-8c6d-7e8f9a0b1c2d"}

	tests := []struct {
		name       string
		body       string
		setupMock  func(*MockService)
		wantStatus int
		wantBody   string
	}{
		{
			name: "degraded comparison",
			body: `{"analysis_ids":["` + ids[0] + `","` + ids[1] + `"]}`,
			setupMock: func(m *MockService) {
				m.On("Compare", mock.Anything, "u1", models.CompareRequest{AnalysisIDs: ids}).Return(&models.CompareResult{
					Status:     "success",
					Videos:     []models.ComparedVideo{{AnalysisID: ids[0]}, {AnalysisID: ids[1]}},
					Comparison: models.ComparisonInsights{SentimentComparison: "Unable to compare the videos at the moment"},
					Degraded:   true,
				}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"degraded":true`,
		},
		{
			name:       "three urls",
			body:       `{"video_urls":["a","b","c"]}`,
			setupMock:  func(_ *MockService) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "must contain exactly 2 items",
		},
		{
			name: "both kinds",
			body: `{"video_urls":["a","b"],"analysis_ids":["` + ids[0] + `","` + ids[1] + `"]}`,
			setupMock: func(m *MockService) {
				m.On("Compare", mock.Anything, "u1", mock.Anything).Return(nil, fmt.Errorf("%w: provide either two video urls or two analysis ids", apperr.ErrInvalidInput))
			},
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses/compare", strings.NewReader(tt.body))
			req = req.WithContext(middlewarectx.WithUser(req.Context(), "u1", "", ""))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}
