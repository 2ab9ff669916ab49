package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the switchboard process.
type Config struct {
	// Worker configuration
	WorkerID string `env:"WORKER_ID" envDefault:"switchboard-1"`

	// Handler registry
	RegistryPath string `env:"REGISTRY_PATH" envDefault:"config/registry.yaml"`

	// Completion endpoint (OpenAI-compatible; Ollama serves one at /v1)
	LLMBaseURL string `env:"LLM_BASE_URL" envDefault:"http://localhost:11434/v1"`
	LLMAPIKey  string `env:"LLM_API_KEY" envDefault:"ollama"`

	// Classifier configuration
	ClassifierModel       string        `env:"CLASSIFIER_MODEL" envDefault:"qwen2.5:7b"`
	ClassifierTemperature float32       `env:"CLASSIFIER_TEMPERATURE" envDefault:"0.1"`
	ClassifierTimeout     time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"15s"`
	ClassifierMaxRetries  int           `env:"CLASSIFIER_MAX_RETRIES" envDefault:"3"`

	// Router configuration
	HandlerTimeout      time.Duration `env:"HANDLER_TIMEOUT" envDefault:"2m"`
	ConfidenceThreshold float64       `env:"CONFIDENCE_THRESHOLD" envDefault:"0.0"`
	PreservePartials    bool          `env:"PRESERVE_PARTIALS" envDefault:"false"`
	MaxHistoryTurns     int           `env:"MAX_HISTORY_TURNS" envDefault:"20"`

	// Conversation memory backend: "memory" or "redis"
	MemoryBackend string        `env:"MEMORY_BACKEND" envDefault:"memory"`
	MemoryTTL     time.Duration `env:"MEMORY_TTL" envDefault:"0"`

	// Redis configuration (memory backend and service mode)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASS" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Stream configuration (service mode)
	TranscriptStream string        `env:"TRANSCRIPT_STREAM" envDefault:"voice.transcripts"`
	ConsumerGroup    string        `env:"CONSUMER_GROUP" envDefault:"switchboard-workers"`
	ResponseStream   string        `env:"RESPONSE_STREAM" envDefault:"voice.responses"`
	BlockTime        time.Duration `env:"BLOCK_TIME" envDefault:"1s"`

	// Health check configuration
	HealthPort int `env:"HEALTH_PORT" envDefault:"8082"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.WorkerID == "" {
		return fmt.Errorf("WORKER_ID is required")
	}

	if c.RegistryPath == "" {
		return fmt.Errorf("REGISTRY_PATH is required")
	}

	if c.LLMBaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL is required")
	}

	if c.ClassifierModel == "" {
		return fmt.Errorf("CLASSIFIER_MODEL is required")
	}

	if c.ClassifierTemperature < 0 || c.ClassifierTemperature > 2 {
		return fmt.Errorf("CLASSIFIER_TEMPERATURE must be between 0 and 2")
	}

	if c.ClassifierTimeout <= 0 {
		return fmt.Errorf("CLASSIFIER_TIMEOUT must be positive")
	}

	if c.ClassifierMaxRetries < 0 {
		return fmt.Errorf("CLASSIFIER_MAX_RETRIES must be non-negative")
	}

	if c.HandlerTimeout <= 0 {
		return fmt.Errorf("HANDLER_TIMEOUT must be positive")
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be between 0 and 1")
	}

	if c.MaxHistoryTurns < 0 {
		return fmt.Errorf("MAX_HISTORY_TURNS must be non-negative")
	}

	switch c.MemoryBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("MEMORY_BACKEND must be one of: memory, redis")
	}

	if c.MemoryTTL < 0 {
		return fmt.Errorf("MEMORY_TTL must be non-negative")
	}

	if c.MemoryBackend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required for the redis memory backend")
	}

	if c.TranscriptStream == "" {
		return fmt.Errorf("TRANSCRIPT_STREAM is required")
	}

	if c.ConsumerGroup == "" {
		return fmt.Errorf("CONSUMER_GROUP is required")
	}

	if c.ResponseStream == "" {
		return fmt.Errorf("RESPONSE_STREAM is required")
	}

	if c.BlockTime <= 0 {
		return fmt.Errorf("BLOCK_TIME must be positive")
	}

	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("HEALTH_PORT must be between 1 and 65535")
	}

	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	return validLevels[level]
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{WorkerID=%s, RegistryPath=%s, LLMBaseURL=%s, ClassifierModel=%s, "+
			"MemoryBackend=%s, RedisAddr=%s, TranscriptStream=%s, ConsumerGroup=%s, "+
			"ResponseStream=%s, HealthPort=%d, LogLevel=%s}",
		c.WorkerID,
		c.RegistryPath,
		c.LLMBaseURL,
		c.ClassifierModel,
		c.MemoryBackend,
		c.RedisAddr,
		c.TranscriptStream,
		c.ConsumerGroup,
		c.ResponseStream,
		c.HealthPort,
		c.LogLevel,
	)
}
