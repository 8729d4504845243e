package main

import (
	"context"
	"fmt"
	"net/http"

	"marketplace-assistant/internal/api"
	"marketplace-assistant/internal/breaker"
	"marketplace-assistant/internal/cache"
	"marketplace-assistant/internal/config"
	"marketplace-assistant/internal/events"
	"marketplace-assistant/internal/faq"
	"marketplace-assistant/internal/llm"
	"marketplace-assistant/internal/metrics"
	"marketplace-assistant/internal/repository"
	"marketplace-assistant/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	app := fx.New(
		// Configuration
		fx.Provide(config.NewConfig),

		// Logging
		fx.Provide(NewLogger),

		// Database
		fx.Provide(repository.NewPostgresDB),
		fx.Provide(repository.NewResponseCacheRepository),
		fx.Provide(repository.NewAnalyticsRepository),

		// Cache
		fx.Provide(cache.NewRedisClient),
		fx.Provide(cache.NewCacheService),

		// FAQ rules
		fx.Provide(faq.NewDefaultMatcher),
		fx.Provide(NewFAQIndex),

		// Language model
		fx.Provide(llm.NewClient),
		fx.Provide(NewBreaker),

		// Events
		fx.Provide(events.NewPublisher),

		// Services
		fx.Provide(services.NewChatService),
		fx.Provide(services.NewAnalyticsService),

		// Metrics
		fx.Provide(metrics.NewMetricsCollector),

		// API
		fx.Provide(NewGinEngine),
		fx.Provide(NewChatHandler),
		fx.Provide(NewFAQHandler),
		fx.Provide(NewAnalyticsHandler),
		fx.Provide(NewHealthHandler),

		// HTTP Server
		fx.Provide(NewHTTPServer),

		// Lifecycle
		fx.Invoke(RegisterRoutes),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Logging.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.Logging.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	if cfg.Logging.Encoding != "" {
		zcfg.Encoding = cfg.Logging.Encoding
	}

	return zcfg.Build()
}

func NewFAQIndex(lc fx.Lifecycle, matcher *faq.Matcher, logger *zap.Logger) (*faq.Index, error) {
	index, err := faq.NewIndex(matcher, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return index.Close()
		},
	})

	return index, nil
}

func NewBreaker(cfg *config.Config, m *metrics.MetricsCollector, logger *zap.Logger) *breaker.Breaker {
	m.SetBreakerState(int(breaker.StateClosed), breaker.StateClosed.String())

	return breaker.New(breaker.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown,
		OnStateChange: func(from, to breaker.State) {
			logger.Warn("llm circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			m.SetBreakerState(int(to), to.String())
		},
	})
}

func NewChatHandler(cfg *config.Config, chat *services.ChatService, logger *zap.Logger) *api.ChatHandler {
	return api.NewChatHandler(chat, cfg.Server.MaxRequestSize, logger)
}

func NewFAQHandler(matcher *faq.Matcher, index *faq.Index, logger *zap.Logger) *api.FAQHandler {
	return api.NewFAQHandler(matcher, index, logger)
}

func NewAnalyticsHandler(analytics *services.AnalyticsService, logger *zap.Logger) *api.AnalyticsHandler {
	return api.NewAnalyticsHandler(analytics, logger)
}

func NewHealthHandler(
	cacheService *cache.CacheService,
	responses *repository.ResponseCacheRepository,
	cb *breaker.Breaker,
	logger *zap.Logger,
) *api.HealthHandler {
	return api.NewHealthHandler(cacheService, responses, cb, logger)
}

func NewGinEngine(cfg *config.Config, m *metrics.MetricsCollector) *gin.Engine {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(api.CORS())
	engine.Use(api.RequestMetrics(m))

	return engine
}

func NewHTTPServer(cfg *config.Config, engine *gin.Engine) *http.Server {
	return &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        engine,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
}

func RegisterRoutes(
	cfg *config.Config,
	engine *gin.Engine,
	m *metrics.MetricsCollector,
	chatHandler *api.ChatHandler,
	faqHandler *api.FAQHandler,
	analyticsHandler *api.AnalyticsHandler,
	healthHandler *api.HealthHandler,
) {
	// Health endpoints
	engine.GET("/health", healthHandler.Health)
	engine.GET("/health/ready", healthHandler.Ready)
	engine.GET("/health/live", healthHandler.Live)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	// API v1 routes
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/chat", chatHandler.Chat)

		v1.GET("/faq", faqHandler.List)
		v1.GET("/faq/search", faqHandler.Search)

		v1.GET("/analytics/shop/:vendorId", analyticsHandler.Shop)
		v1.GET("/analytics/services/:providerId", analyticsHandler.Services)
		v1.GET("/analytics/events/:organizerId", analyticsHandler.Events)
	}
}

func StartServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	server *http.Server,
	chat *services.ChatService,
	cacheService *cache.CacheService,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting Marketplace Assistant",
				zap.String("addr", server.Addr))

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Failed to start server", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down Marketplace Assistant")

			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()

			err := server.Shutdown(shutdownCtx)

			// drain background cache writes and event publishes
			chat.Wait()
			cacheService.Wait()

			return err
		},
	})
}
