package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// HealthChecker is implemented by the Postgres and Redis clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db      HealthChecker
	redis   HealthChecker
	version string
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

// NewHealthHandler creates a health handler. A nil checker marks the
// dependency as disabled rather than unhealthy.
func NewHealthHandler(db HealthChecker, redis HealthChecker, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		version: version,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	services := map[string]string{
		"database": checkDependency(ctx, h.db),
		"redis":    checkDependency(ctx, h.redis),
	}

	overallStatus := "healthy"
	for _, status := range services {
		if status != "healthy" && status != "disabled" {
			overallStatus = "unhealthy"
			break
		}
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Services:  services,
		Version:   h.version,
		Uptime:    time.Since(startTime).String(),
	}

	if overallStatus == "healthy" {
		c.JSON(http.StatusOK, response)
		return
	}
	c.JSON(http.StatusServiceUnavailable, response)
}

func checkDependency(ctx context.Context, checker HealthChecker) string {
	if checker == nil {
		return "disabled"
	}
	if err := checker.HealthCheck(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}
