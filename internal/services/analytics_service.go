package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"marketplace-assistant/internal/analytics"
	"marketplace-assistant/internal/config"
	"marketplace-assistant/internal/metrics"
	"marketplace-assistant/internal/models"
	"marketplace-assistant/internal/repository"
)

// AnalyticsSource fetches the rows analytics are built from
type AnalyticsSource interface {
	ShopOrders(ctx context.Context, vendorID string) ([]models.OrderRow, error)
	ServiceBookings(ctx context.Context, providerID string) ([]models.BookingRow, error)
	EventRegistrations(ctx context.Context, organizerID string) ([]models.RegistrationRow, error)
}

// AnalyticsService builds owner dashboards from freshly fetched rows
type AnalyticsService struct {
	source  AnalyticsSource
	options analytics.Options
	metrics *metrics.MetricsCollector
	logger  *zap.Logger
}

// NewAnalyticsService creates the analytics service for dependency injection
func NewAnalyticsService(cfg *config.Config, repo *repository.AnalyticsRepository, metricsCollector *metrics.MetricsCollector, logger *zap.Logger) *AnalyticsService {
	return newAnalyticsService(cfg, repo, metricsCollector, logger)
}

func newAnalyticsService(cfg *config.Config, source AnalyticsSource, m *metrics.MetricsCollector, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		source: source,
		options: analytics.Options{
			TopN:               cfg.Analytics.TopN,
			PlaceholderRatings: cfg.Analytics.PlaceholderRatings,
		},
		metrics: m,
		logger:  logger,
	}
}

// opts returns options anchored at the current time
func (s *AnalyticsService) opts() analytics.Options {
	o := s.options
	o.Now = time.Now()
	return o
}

// Shop builds the analytics for a vendor
func (s *AnalyticsService) Shop(ctx context.Context, vendorID string) (*models.ShopAnalytics, error) {
	start := time.Now()
	orders, err := s.source.ShopOrders(ctx, vendorID)
	if err != nil {
		s.record("shop", err, start)
		return nil, fmt.Errorf("failed to load shop orders: %w", err)
	}

	out := analytics.BuildShopAnalytics(orders, s.opts())
	s.record("shop", nil, start)
	return out, nil
}

// Services builds the analytics for a service provider
func (s *AnalyticsService) Services(ctx context.Context, providerID string) (*models.ServiceAnalytics, error) {
	start := time.Now()
	bookings, err := s.source.ServiceBookings(ctx, providerID)
	if err != nil {
		s.record("services", err, start)
		return nil, fmt.Errorf("failed to load service bookings: %w", err)
	}

	out := analytics.BuildServiceAnalytics(bookings, s.opts())
	s.record("services", nil, start)
	return out, nil
}

// Events builds the analytics for an event organizer
func (s *AnalyticsService) Events(ctx context.Context, organizerID string) (*models.EventAnalytics, error) {
	start := time.Now()
	registrations, err := s.source.EventRegistrations(ctx, organizerID)
	if err != nil {
		s.record("events", err, start)
		return nil, fmt.Errorf("failed to load event registrations: %w", err)
	}

	out := analytics.BuildEventAnalytics(registrations, s.opts())
	s.record("events", nil, start)
	return out, nil
}

func (s *AnalyticsService) record(domain string, err error, start time.Time) {
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.RecordAnalyticsBuild(domain, "error", elapsed)
		s.logger.Error("analytics fetch failed",
			zap.String("domain", domain),
			zap.Error(err),
			zap.Duration("duration", elapsed))
		return
	}

	s.metrics.RecordAnalyticsBuild(domain, "success", elapsed)
	s.logger.Debug("analytics built",
		zap.String("domain", domain),
		zap.Duration("duration", elapsed))
}
