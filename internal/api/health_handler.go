package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-assistant/internal/breaker"
)

const serviceName = "marketplace-assistant"

// Pinger is a dependency that can report connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker reports database connectivity
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// BreakerReporter exposes the language model circuit breaker
type BreakerReporter interface {
	Snapshot() breaker.Snapshot
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	cache    Pinger
	database DatabaseChecker
	breaker  BreakerReporter
	logger   *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(
	cache Pinger,
	database DatabaseChecker,
	cb BreakerReporter,
	logger *zap.Logger,
) *HealthHandler {
	return &HealthHandler{
		cache:    cache,
		database: database,
		breaker:  cb,
		logger:   logger,
	}
}

// Health returns basic health status
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"version":   "1.0.0",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Ready checks if the service is ready to handle requests. An open breaker
// is reported but does not make the service unready; chat still answers.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	start := time.Now()

	checks := make(map[string]interface{})
	allHealthy := true

	if !h.check(c.Request.Context(), checks, "cache", h.cache.Ping) {
		allHealthy = false
	}
	if !h.check(c.Request.Context(), checks, "database", h.database.HealthCheck) {
		allHealthy = false
	}

	snap := h.breaker.Snapshot()
	checks["llm_breaker"] = map[string]interface{}{
		"status":               snap.State,
		"consecutive_failures": snap.ConsecutiveFailures,
	}

	status := http.StatusOK
	overallStatus := "ready"
	if !allHealthy {
		status = http.StatusServiceUnavailable
		overallStatus = "not_ready"
	}

	c.JSON(status, gin.H{
		"status":         overallStatus,
		"service":        serviceName,
		"checks":         checks,
		"total_duration": time.Since(start).Milliseconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

func (h *HealthHandler) check(ctx context.Context, checks map[string]interface{}, name string, fn func(context.Context) error) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		checks[name] = map[string]interface{}{
			"status":   "unhealthy",
			"error":    err.Error(),
			"duration": time.Since(start).Milliseconds(),
		}
		h.logger.Warn(name+" health check failed", zap.Error(err))
		return false
	}

	checks[name] = map[string]interface{}{
		"status":   "healthy",
		"duration": time.Since(start).Milliseconds(),
	}
	return true
}

// Live checks if the service is alive
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   serviceName,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
