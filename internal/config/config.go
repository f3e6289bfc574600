package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"NP_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"NP_DB_MAX_CONNS" default:"8"`

	CronSecret string `envconfig:"CRON_SECRET" default:""`

	ScraperAPIKey   string `envconfig:"SCRAPER_API_KEY" default:""`
	ScraperEndpoint string `envconfig:"SCRAPER_ENDPOINT" default:"https://api.scraperapi.com/"`
	NitterBaseURL   string `envconfig:"NITTER_BASE_URL" default:"https://nitter.net"`
	PublicSearchURL string `envconfig:"PUBLIC_SEARCH_URL" default:"https://twitter.com/search"`

	AIProvider      string `envconfig:"AI_PROVIDER" default:"gemini"`
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel     string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY" default:""`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL" default:"claude-haiku-4-5"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIModel     string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	TelegramBotToken      string  `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramAPIEndpoint   string  `envconfig:"TELEGRAM_API_ENDPOINT" default:""`
	TelegramRatePerSec    float64 `envconfig:"TELEGRAM_RATE_PER_SEC" default:"25"`
	TelegramWebhookSecret string  `envconfig:"TELEGRAM_WEBHOOK_SECRET" default:""`

	MonitorBatchSize   int           `envconfig:"MONITOR_BATCH_SIZE" default:"5"`
	MonitorWorkers     int           `envconfig:"MONITOR_WORKERS" default:"3"`
	FetchTimeout       time.Duration `envconfig:"FETCH_TIMEOUT" default:"20s"`
	AITimeout          time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`
	SendTimeout        time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
	EarlyStopThreshold int           `envconfig:"EARLY_STOP_THRESHOLD" default:"5"`
	MaxCandidates      int           `envconfig:"MAX_CANDIDATES" default:"20"`
	MaxPostsPerQuery   int           `envconfig:"MAX_POSTS_PER_QUERY" default:"10"`
	MinPostLength      int           `envconfig:"MIN_POST_LENGTH" default:"20"`

	LeaseBackend string        `envconfig:"LEASE_BACKEND" default:"postgres"`
	LeaseTTL     time.Duration `envconfig:"LEASE_TTL" default:"5m"`
	RedisURL     string        `envconfig:"REDIS_URL" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("NP_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("NP_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("NP_DB_MIN_CONNS (%d) cannot exceed NP_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.MonitorBatchSize < 1 {
		return fmt.Errorf("MONITOR_BATCH_SIZE must be >= 1")
	}
	if c.MonitorWorkers < 1 {
		return fmt.Errorf("MONITOR_WORKERS must be >= 1")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be > 0")
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be > 0")
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("SEND_TIMEOUT must be > 0")
	}
	if c.EarlyStopThreshold < 0 {
		return fmt.Errorf("EARLY_STOP_THRESHOLD must be >= 0")
	}
	if c.MaxCandidates < 1 {
		return fmt.Errorf("MAX_CANDIDATES must be >= 1")
	}
	if c.MaxPostsPerQuery < 1 {
		return fmt.Errorf("MAX_POSTS_PER_QUERY must be >= 1")
	}
	if c.MinPostLength < 0 {
		return fmt.Errorf("MIN_POST_LENGTH must be >= 0")
	}
	if c.TelegramRatePerSec <= 0 {
		return fmt.Errorf("TELEGRAM_RATE_PER_SEC must be > 0")
	}
	if c.LeaseTTL <= 0 {
		return fmt.Errorf("LEASE_TTL must be > 0")
	}

	switch c.LeaseBackendName() {
	case "postgres":
	case "redis":
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("REDIS_URL is required when LEASE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("LEASE_BACKEND must be postgres or redis, got %q", c.LeaseBackend)
	}
	return nil
}

func (c *Config) LeaseBackendName() string {
	if c == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(c.LeaseBackend))
}
