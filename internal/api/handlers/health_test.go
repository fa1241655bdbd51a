package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockHealthChecker mocks a dependency health check
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func serveHealth(t *testing.T, handler *HealthHandler) (int, HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", handler.HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w.Code, response
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		db := &MockHealthChecker{}
		db.On("HealthCheck", mock.Anything).Return(nil)
		redis := &MockHealthChecker{}
		redis.On("HealthCheck", mock.Anything).Return(nil)

		code, response := serveHealth(t, NewHealthHandler(db, redis, "1.2.3"))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "healthy", response.Services["database"])
		assert.Equal(t, "healthy", response.Services["redis"])
		assert.Equal(t, "1.2.3", response.Version)
		assert.NotEmpty(t, response.Uptime)
		db.AssertExpectations(t)
		redis.AssertExpectations(t)
	})

	t.Run("disabled dependencies", func(t *testing.T) {
		code, response := serveHealth(t, NewHealthHandler(nil, nil, ""))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "disabled", response.Services["database"])
		assert.Equal(t, "disabled", response.Services["redis"])
	})

	t.Run("database down", func(t *testing.T) {
		db := &MockHealthChecker{}
		db.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))

		code, response := serveHealth(t, NewHealthHandler(db, nil, ""))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Equal(t, "unhealthy: connection refused", response.Services["database"])
	})
}
