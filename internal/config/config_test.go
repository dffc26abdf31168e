package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/claims-fulfillment/internal/domain/fulfillment"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "data/fulfillment.db", cfg.Database.Path)
	assert.Equal(t, 150.0, cfg.Routing.VoucherThreshold)
	assert.Equal(t, fulfillment.DefaultLargeItemCategories, cfg.Routing.LargeItemCategories)
	assert.Contains(t, cfg.Routing.LargeItemCategories, "Washing Machines")
	assert.Equal(t, 2*time.Second, cfg.Payment.SimulatedDelay)
	assert.Equal(t, 30, cfg.Availability.WindowDays)
	assert.Equal(t, 7, cfg.Availability.PatternModulus)
	assert.Equal(t, 15*time.Minute, cfg.Recommendation.CacheTTL)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.RecommendationsEnabled())
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("REDIS_ADDR", "cache:6380")

	cfg, err := Load(writeConfig(t, `
routing:
  voucher_threshold: 200
  large_item_categories: ["TVs"]
redis:
  enabled: true
payment:
  simulated_delay: 500ms
`))
	require.NoError(t, err)

	assert.Equal(t, 200.0, cfg.Routing.VoucherThreshold)
	assert.Equal(t, []string{"TVs"}, cfg.Routing.LargeItemCategories)
	assert.Equal(t, 500*time.Millisecond, cfg.Payment.SimulatedDelay)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.True(t, cfg.RecommendationsEnabled())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:       ServerConfig{Port: 8080},
			Database:     DatabaseConfig{Path: "x.db"},
			Routing:      RoutingConfig{VoucherThreshold: 150},
			Availability: AvailabilityConfig{WindowDays: 30, PatternModulus: 7},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no database", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"zero threshold", func(c *Config) { c.Routing.VoucherThreshold = 0 }, "routing.voucher_threshold"},
		{"negative delay", func(c *Config) { c.Payment.SimulatedDelay = -time.Second }, "payment.simulated_delay"},
		{"zero window", func(c *Config) { c.Availability.WindowDays = 0 }, "availability.window_days"},
		{"zero modulus", func(c *Config) { c.Availability.PatternModulus = 0 }, "availability.pattern_modulus"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true }, "redis.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
