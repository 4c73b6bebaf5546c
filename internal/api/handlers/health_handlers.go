package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stackmotive/stackmotive/pkg/health"
	"github.com/stackmotive/stackmotive/pkg/version"
)

var startTime = time.Now()

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checker *health.HealthChecker
	// readiness only depends on the ring store
	readiness *health.HealthChecker
}

// NewHealthHandler creates a new health handler. checker covers every
// dependency; readiness covers the ones requests cannot be served without.
func NewHealthHandler(checker, readiness *health.HealthChecker) *HealthHandler {
	return &HealthHandler{
		checker:   checker,
		readiness: readiness,
	}
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    health.Status                 `json:"status"`
	Timestamp time.Time                     `json:"timestamp"`
	Version   string                        `json:"version"`
	Uptime    string                        `json:"uptime"`
	Checks    map[string]health.CheckResult `json:"checks"`
}

// Health performs comprehensive health checks
// @Summary Get application health status
// @Description Runs every registered dependency check. Degraded collaborators still answer 200.
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	status, checks := h.checker.Check(ctx)

	statusCode := http.StatusOK
	if status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   version.Version,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Checks:    checks,
	})
}

// Ready checks if the application is ready to serve traffic
// @Summary Get application readiness status
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, checks := h.readiness.Check(ctx)
	ready := status != health.StatusUnhealthy

	statusText := "ready"
	statusCode := http.StatusOK
	if !ready {
		statusText = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    statusText,
		"timestamp": time.Now(),
		"checks":    checks,
	})
}

// Live reports that the process is up
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// Version returns build information
// @Summary Build information
// @Tags health
// @Produce json
// @Success 200 {object} version.Info
// @Router /version [get]
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
