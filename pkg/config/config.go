// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Redis, Kafka, Corpus, Search, Analytics, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the number of API requests per minute allowed for each
	// client address. Zero disables limiting.
	RateLimit int `yaml:"rateLimit"`
	// AllowIngest exposes POST /api/v1/documents for adding documents to
	// the loaded corpus.
	AllowIngest bool `yaml:"allowIngest"`
	// IngestKeys, when set, restricts ingestion to callers presenting one
	// of these keys.
	IngestKeys []APIKey `yaml:"ingestKeys"`
	// CORSOrigins lists the browser origins allowed to call the API; "*"
	// allows any. Empty disables CORS headers.
	CORSOrigins []string `yaml:"corsOrigins"`
}

// APIKey is a stored API key. Only the SHA-256 hex digest of the raw key is
// kept in configuration.
type APIKey struct {
	Name      string     `yaml:"name"`
	Hash      string     `yaml:"hash"`
	ExpiresAt *time.Time `yaml:"expiresAt,omitempty"`
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the result cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
	// The cache stops calling Redis for BreakerCooldown after
	// BreakerThreshold consecutive failures.
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerCooldown  time.Duration `yaml:"breakerCooldown"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// CorpusConfig controls document intake: how many documents the corpus
// accepts, how long a term may be, and which files the loader picks up.
type CorpusConfig struct {
	Capacity        int      `yaml:"capacity"`
	MaxTermLength   int      `yaml:"maxTermLength"`
	Extensions      []string `yaml:"extensions"`
	ReadConcurrency int      `yaml:"readConcurrency"`
}

// SearchConfig controls result limits.
type SearchConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxResults   int `yaml:"maxResults"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// AnalyticsConfig controls publishing of search and index events.
type AnalyticsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BufferSize    int           `yaml:"bufferSize"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	// A failed batch is retried up to PublishAttempts times in total,
	// waiting RetryBackoff before the first retry and doubling after that.
	PublishAttempts int           `yaml:"publishAttempts"`
	RetryBackoff    time.Duration `yaml:"retryBackoff"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults for local use.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:         10,
			CacheTTL:         60 * time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "corpus-search-analytics",
			Topics: KafkaTopics{
				AnalyticsEvents: "corpus-search-events",
			},
		},
		Corpus: CorpusConfig{
			Capacity:        100,
			MaxTermLength:   100,
			Extensions:      []string{".txt"},
			ReadConcurrency: 8,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxResults:   100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Analytics: AnalyticsConfig{
			Enabled:         false,
			BufferSize:      10000,
			BatchSize:       100,
			FlushInterval:   5 * time.Second,
			PublishAttempts: 3,
			RetryBackoff:    200 * time.Millisecond,
		},
	}
}

// Validate rejects settings the engine cannot work with.
func (c *Config) Validate() error {
	if c.Corpus.Capacity < 0 {
		return fmt.Errorf("corpus.capacity must not be negative, got %d", c.Corpus.Capacity)
	}
	if c.Corpus.MaxTermLength <= 0 {
		return fmt.Errorf("corpus.maxTermLength must be positive, got %d", c.Corpus.MaxTermLength)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.defaultLimit must be positive, got %d", c.Search.DefaultLimit)
	}
	for i, key := range c.Server.IngestKeys {
		if key.Name == "" {
			return fmt.Errorf("server.ingestKeys[%d].name is required", i)
		}
		if len(key.Hash) != 64 || strings.Trim(strings.ToLower(key.Hash), "0123456789abcdef") != "" {
			return fmt.Errorf("server.ingestKeys[%d].hash must be a SHA-256 hex digest", i)
		}
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults (%d) must be at least search.defaultLimit (%d)",
			c.Search.MaxResults, c.Search.DefaultLimit)
	}
	return nil
}

// applyEnvOverrides reads CS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CS_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("CS_SERVER_ALLOW_INGEST"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.AllowIngest = b
		}
	}
	if v := os.Getenv("CS_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("CS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CS_CORPUS_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Corpus.Capacity = n
		}
	}
	if v := os.Getenv("CS_CORPUS_MAX_TERM_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Corpus.MaxTermLength = n
		}
	}
	if v := os.Getenv("CS_SEARCH_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv("CS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CS_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("CS_ANALYTICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.Enabled = b
		}
	}
}
