package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/claims-fulfillment/internal/domain/fulfillment"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	OpenAI         OpenAIConfig         `mapstructure:"openai"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Logger         LoggerConfig         `mapstructure:"logger"`
	Routing        RoutingConfig        `mapstructure:"routing"`
	Payment        PaymentConfig        `mapstructure:"payment"`
	Availability   AvailabilityConfig   `mapstructure:"availability"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// OpenAIConfig holds the recommendation provider configuration.
// An empty APIKey disables recommendations.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	PromptsPath string        `mapstructure:"prompts_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RedisConfig holds the recommendation cache connection
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// RoutingConfig holds the fulfillment routing thresholds
type RoutingConfig struct {
	VoucherThreshold    float64  `mapstructure:"voucher_threshold"`
	LargeItemCategories []string `mapstructure:"large_item_categories"`
}

// PaymentConfig controls the simulated payment processor
type PaymentConfig struct {
	SimulatedDelay time.Duration `mapstructure:"simulated_delay"`
}

// AvailabilityConfig controls the availability oracle
type AvailabilityConfig struct {
	WindowDays     int `mapstructure:"window_days"`
	PatternModulus int `mapstructure:"pattern_modulus"`
}

// RecommendationConfig controls caching and client-side rate limiting
type RecommendationConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	RatePerMinute float64       `mapstructure:"rate_per_minute"`
	Burst         int           `mapstructure:"burst"`
}

// Load loads configuration from file and environment variables.
// A .env file in the working directory is applied first when present.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/fulfillment.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.prompts_path", "configs/prompts.yaml")
	v.SetDefault("openai.timeout", 60*time.Second)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Routing defaults
	v.SetDefault("routing.voucher_threshold", fulfillment.DefaultVoucherThreshold)
	v.SetDefault("routing.large_item_categories", append([]string(nil), fulfillment.DefaultLargeItemCategories...))

	v.SetDefault("payment.simulated_delay", 2*time.Second)

	v.SetDefault("availability.window_days", 30)
	v.SetDefault("availability.pattern_modulus", 7)

	v.SetDefault("recommendation.cache_ttl", 15*time.Minute)
	v.SetDefault("recommendation.rate_per_minute", 30.0)
	v.SetDefault("recommendation.burst", 5)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("database.path", "DATABASE_PATH")
	v.BindEnv("server.port", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Routing.VoucherThreshold <= 0 {
		return fmt.Errorf("routing.voucher_threshold must be positive")
	}

	if c.Payment.SimulatedDelay < 0 {
		return fmt.Errorf("payment.simulated_delay cannot be negative")
	}

	if c.Availability.WindowDays <= 0 {
		return fmt.Errorf("availability.window_days must be positive")
	}
	if c.Availability.PatternModulus <= 0 {
		return fmt.Errorf("availability.pattern_modulus must be positive")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	if c.Recommendation.RatePerMinute < 0 {
		return fmt.Errorf("recommendation.rate_per_minute cannot be negative")
	}

	return nil
}

// RecommendationsEnabled reports whether an AI provider is configured
func (c *Config) RecommendationsEnabled() bool {
	return c.OpenAI.APIKey != ""
}
