package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) AnalyzerHealth(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name         string
		probeErr     error
		wantAnalyzer string
	}{
		{"analyzer ready", nil, `"analyzer":"ok"`},
		{"analyzer down", errors.New("connection refused"), `"analyzer":"unavailable"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("AnalyzerHealth", mock.Anything).Return(tt.probeErr).Once()
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantAnalyzer)
			svc.AssertExpectations(t)
		})
	}
}
