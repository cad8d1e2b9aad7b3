package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8050, cfg.Server.Port)
	assert.Equal(t, "ProcessedTweets.csv", cfg.Dataset.Path)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "explorer-stats", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, "127.0.0.1:8050", cfg.Server.Addr())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9000
dataset:
  path: data/tweets.csv
session:
  ttl: 30m
render:
  width: 640
  height: 480
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
	assert.Equal(t, "data/tweets.csv", cfg.Dataset.Path)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 640, cfg.Render.Width)
	// untouched sections keep their defaults
	assert.Equal(t, "explorer_session", cfg.Session.CookieName)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SE_DATASET_PATH", "/srv/tweets.csv")
	t.Setenv("SE_SERVER_PORT", "8123")
	t.Setenv("SE_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/srv/tweets.csv", cfg.Dataset.Path)
	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestDebugModeForcesDebugLogging(t *testing.T) {
	t.Setenv("SE_SERVER_DEBUG", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty dataset path", func(c *Config) { c.Dataset.Path = " " }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown session backend", func(c *Config) { c.Session.Backend = "disk" }},
		{"redis sessions without redis", func(c *Config) { c.Session.Backend = SessionBackendRedis }},
		{"kafka without brokers", func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		}},
		{"zero render size", func(c *Config) { c.Render.Width = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, defaultConfig().Validate())
}

func TestLimitsRequirePositiveRate(t *testing.T) {
	path := writeConfig(t, `
limits:
  enabled: true
  requestsPerMinute: 0
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limits.requestsPerMinute")
}

func TestDevelopmentConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, 5, cfg.Redis.BreakerThreshold)
	assert.Equal(t, 600, cfg.Limits.RequestsPerMinute)
	assert.Equal(t, "explorer-stats", cfg.Kafka.ConsumerGroup)
}
