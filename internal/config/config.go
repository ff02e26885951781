// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is populated from CHAOGPT_-prefixed environment variables.
type Config struct {
	Addr        string   `envconfig:"ADDR" default:":8080"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	// Upstream completion provider (OpenAI-compatible).
	UpstreamBaseURL  string        `envconfig:"UPSTREAM_BASE_URL" default:"https://v98store.com"`
	UpstreamAPIKey   string        `envconfig:"UPSTREAM_API_KEY"`
	Model            string        `envconfig:"MODEL" default:"gpt-4o"`
	Temperature      float64       `envconfig:"TEMPERATURE" default:"0.9"`
	MaxTokens        int           `envconfig:"MAX_TOKENS" default:"2000"`
	PresencePenalty  float64       `envconfig:"PRESENCE_PENALTY" default:"0.6"`
	FrequencyPenalty float64       `envconfig:"FREQUENCY_PENALTY" default:"0.3"`
	UpstreamAttempts int           `envconfig:"UPSTREAM_ATTEMPTS" default:"3"`
	UpstreamBackoff  time.Duration `envconfig:"UPSTREAM_BACKOFF" default:"1s"`

	// Rate limiting.
	RateLimit      int           `envconfig:"RATE_LIMIT" default:"60"`
	RateWindow     time.Duration `envconfig:"RATE_WINDOW" default:"60s"`
	ChaosThreshold int           `envconfig:"CHAOS_THRESHOLD" default:"50"`
	MaxViolations  int           `envconfig:"MAX_VIOLATIONS" default:"5"`
	SessionSweep   time.Duration `envconfig:"SESSION_SWEEP" default:"5m"`

	// Conversation store.
	MessageCap      int           `envconfig:"MESSAGE_CAP" default:"50"`
	ContextWindow   int           `envconfig:"CONTEXT_WINDOW" default:"10"`
	MaxMessageLen   int           `envconfig:"MAX_MESSAGE_LEN" default:"10000"`
	ConversationTTL time.Duration `envconfig:"CONVERSATION_TTL" default:"720h"`
	StoreSweep      time.Duration `envconfig:"STORE_SWEEP" default:"1h"`

	// Optional durable store. Empty keeps everything in memory. Paths with a
	// "file:" prefix or .db suffix select sqlite, everything else mysql.
	DBDSN string `envconfig:"DB_DSN"`

	// Optional Redis-backed rate limiter. Empty keeps the in-memory limiter.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Optional RabbitMQ lifecycle event publisher. Empty disables publishing.
	RabbitURL   string `envconfig:"RABBIT_URL"`
	RabbitQueue string `envconfig:"RABBIT_QUEUE" default:"chaogpt_events"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("CHAOGPT", &cfg); err != nil {
		return Config{}, err
	}
	if cfg.ContextWindow <= 0 || cfg.ContextWindow > 100 {
		cfg.ContextWindow = 10
	}
	if cfg.MessageCap <= 0 {
		cfg.MessageCap = 50
	}
	return cfg, nil
}
