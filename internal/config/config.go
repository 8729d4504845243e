package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the marketplace assistant service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Chat      ChatConfig      `mapstructure:"chat"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Events    EventsConfig    `mapstructure:"events"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestSize  int64         `mapstructure:"max_request_size"`
}

// DatabaseConfig contains PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// URL renders the connection settings as a postgres:// URL for tools that
// do not accept keyword/value DSNs.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// RedisConfig contains Redis configuration for the hot response tier
type RedisConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Password         string        `mapstructure:"password"`
	Database         int           `mapstructure:"database"`
	PoolSize         int           `mapstructure:"pool_size"`
	MinIdleConns     int           `mapstructure:"min_idle_conns"`
	MaxRetries       int           `mapstructure:"max_retries"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	ResponseCacheTTL time.Duration `mapstructure:"response_cache_ttl"`
}

// ChatConfig controls the chat pipeline
type ChatConfig struct {
	// ResponseTTL bounds how long a persisted answer may be served. Zero keeps entries forever.
	ResponseTTL    time.Duration `mapstructure:"response_ttl"`
	HistoryLimit   int           `mapstructure:"history_limit"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
	MaxMessageSize int           `mapstructure:"max_message_size"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint
type LLMConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float64       `mapstructure:"temperature"`
	SystemPrompt string        `mapstructure:"system_prompt"`
}

// BreakerConfig configures the circuit breaker guarding the LLM
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

// AnalyticsConfig contains analytics aggregation settings
type AnalyticsConfig struct {
	TopN               int           `mapstructure:"top_n"`
	PlaceholderRatings bool          `mapstructure:"placeholder_ratings"`
	QueryTimeout       time.Duration `mapstructure:"query_timeout"`
}

// EventsConfig configures chat event publishing
type EventsConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

// MetricsConfig contains monitoring and metrics configuration
type MetricsConfig struct {
	Enabled          bool      `mapstructure:"enabled"`
	Path             string    `mapstructure:"path"`
	HistogramBuckets []float64 `mapstructure:"histogram_buckets"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

const envPrefix = "MARKET_ASSIST"

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3010)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_request_size", 1048576)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "marketplace")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("database.query_timeout", "30s")

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 5)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "2s")
	v.SetDefault("redis.write_timeout", "2s")
	v.SetDefault("redis.idle_timeout", "5m")
	v.SetDefault("redis.response_cache_ttl", "1h")

	// Chat defaults
	v.SetDefault("chat.response_ttl", "24h")
	v.SetDefault("chat.history_limit", 10)
	v.SetDefault("chat.persist_timeout", "5s")
	v.SetDefault("chat.max_message_size", 4000)

	// LLM defaults
	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", "10s")
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.system_prompt", DefaultSystemPrompt)

	// Breaker defaults
	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.cooldown", "60s")

	// Analytics defaults
	v.SetDefault("analytics.top_n", 5)
	v.SetDefault("analytics.placeholder_ratings", false)
	v.SetDefault("analytics.query_timeout", "15s")

	// Events defaults
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "marketplace.chat.events")
	v.SetDefault("events.client_id", "marketplace-assistant")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.histogram_buckets", []float64{
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
	})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.encoding", "json")
}

// DefaultSystemPrompt frames the assistant for open questions the FAQ rules miss.
const DefaultSystemPrompt = "You are the marketplace assistant. Help users with shopping, vehicles, " +
	"service bookings, events, sim racing and selling on the platform. Keep answers short and friendly. " +
	"If you are unsure, point the user to the Help Center or Support."

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Database.MaxConnections <= 0 {
		return fmt.Errorf("database max_connections must be positive")
	}

	if cfg.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis pool_size must be positive")
	}

	if cfg.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker failure_threshold must be positive")
	}

	if cfg.Breaker.Cooldown <= 0 {
		return fmt.Errorf("breaker cooldown must be positive")
	}

	if cfg.Chat.ResponseTTL < 0 {
		return fmt.Errorf("chat response_ttl must not be negative")
	}

	if cfg.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive")
	}

	if cfg.Analytics.TopN <= 0 {
		return fmt.Errorf("analytics top_n must be positive")
	}

	if cfg.Events.Enabled && len(cfg.Events.Brokers) == 0 {
		return fmt.Errorf("events brokers are required when events are enabled")
	}

	return nil
}

// NewConfig creates a new configuration instance
func NewConfig() (*Config, error) {
	return Load()
}
