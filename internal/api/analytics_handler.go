package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-assistant/internal/models"
	"marketplace-assistant/internal/repository"
)

// AnalyticsProvider builds owner dashboards
type AnalyticsProvider interface {
	Shop(ctx context.Context, vendorID string) (*models.ShopAnalytics, error)
	Services(ctx context.Context, providerID string) (*models.ServiceAnalytics, error)
	Events(ctx context.Context, organizerID string) (*models.EventAnalytics, error)
}

// AnalyticsHandler handles HTTP requests for vendor, provider and organizer analytics
type AnalyticsHandler struct {
	analytics AnalyticsProvider
	logger    *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics AnalyticsProvider, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		logger:    logger,
	}
}

// Shop returns shop analytics for a vendor
// GET /api/v1/analytics/shop/:vendorId
func (h *AnalyticsHandler) Shop(c *gin.Context) {
	vendorID := c.Param("vendorId")
	start := time.Now()

	result, err := h.analytics.Shop(c.Request.Context(), vendorID)
	if err != nil {
		h.fail(c, "shop", vendorID, err)
		return
	}

	respond(c, result, start)
}

// Services returns booking analytics for a service provider
// GET /api/v1/analytics/services/:providerId
func (h *AnalyticsHandler) Services(c *gin.Context) {
	providerID := c.Param("providerId")
	start := time.Now()

	result, err := h.analytics.Services(c.Request.Context(), providerID)
	if err != nil {
		h.fail(c, "services", providerID, err)
		return
	}

	respond(c, result, start)
}

// Events returns registration analytics for an event organizer
// GET /api/v1/analytics/events/:organizerId
func (h *AnalyticsHandler) Events(c *gin.Context) {
	organizerID := c.Param("organizerId")
	start := time.Now()

	result, err := h.analytics.Events(c.Request.Context(), organizerID)
	if err != nil {
		h.fail(c, "events", organizerID, err)
		return
	}

	respond(c, result, start)
}

func respond(c *gin.Context, result interface{}, start time.Time) {
	c.JSON(http.StatusOK, gin.H{
		"analytics": result,
		"meta": gin.H{
			"processing_time_ms": time.Since(start).Milliseconds(),
			"generated_at":       time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (h *AnalyticsHandler) fail(c *gin.Context, domain, ownerID string, err error) {
	if errors.Is(err, repository.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid owner ID"})
		return
	}

	h.logger.Error("failed to build analytics",
		zap.String("domain", domain),
		zap.String("owner_id", ownerID),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analytics"})
}
