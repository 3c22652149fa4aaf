package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Corpus.Capacity)
	assert.Equal(t, 100, cfg.Corpus.MaxTermLength)
	assert.Equal(t, []string{".txt"}, cfg.Corpus.Extensions)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
corpus:
  capacity: 5
  extensions: [".txt", ".md"]
search:
  defaultLimit: 3
redis:
  cacheTTL: 2m
  breakerCooldown: 10s
analytics:
  publishAttempts: 5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	t.Setenv("CS_LOGGING_LEVEL", "debug")
	t.Setenv("CS_CORPUS_CAPACITY", "7")
	t.Setenv("CS_SERVER_RATE_LIMIT", "120")
	t.Setenv("CS_SERVER_ALLOW_INGEST", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Corpus.Capacity)
	assert.Equal(t, []string{".txt", ".md"}, cfg.Corpus.Extensions)
	assert.Equal(t, 3, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 10*time.Second, cfg.Redis.BreakerCooldown)
	assert.Equal(t, 5, cfg.Redis.BreakerThreshold)
	assert.Equal(t, 5, cfg.Analytics.PublishAttempts)
	assert.Equal(t, 120, cfg.Server.RateLimit)
	assert.True(t, cfg.Server.AllowIngest)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative capacity", func(c *Config) { c.Corpus.Capacity = -1 }},
		{"zero term length", func(c *Config) { c.Corpus.MaxTermLength = 0 }},
		{"zero limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxResults = 5 }},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }},
		{"unnamed ingest key", func(c *Config) {
			c.Server.IngestKeys = []APIKey{{Hash: strings.Repeat("a", 64)}}
		}},
		{"raw ingest key", func(c *Config) {
			c.Server.IngestKeys = []APIKey{{Name: "ci", Hash: "secret"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestDevelopmentConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.Server.AllowIngest)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{".txt", ".md"}, cfg.Corpus.Extensions)
}
