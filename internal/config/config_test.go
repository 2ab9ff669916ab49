package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "switchboard-1", cfg.WorkerID)
	assert.Equal(t, "config/registry.yaml", cfg.RegistryPath)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLMBaseURL)
	assert.Equal(t, 2*time.Minute, cfg.HandlerTimeout)
	assert.Equal(t, "memory", cfg.MemoryBackend)
	assert.Equal(t, "voice.transcripts", cfg.TranscriptStream)
	assert.Equal(t, 8082, cfg.HealthPort)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("WORKER_ID", "switchboard-7")
	t.Setenv("MEMORY_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("HANDLER_TIMEOUT", "30s")
	t.Setenv("PRESERVE_PARTIALS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "switchboard-7", cfg.WorkerID)
	assert.Equal(t, "redis", cfg.MemoryBackend)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.HandlerTimeout)
	assert.True(t, cfg.PreservePartials)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty worker id", func(c *Config) { c.WorkerID = "" }},
		{"empty registry path", func(c *Config) { c.RegistryPath = "" }},
		{"empty llm base url", func(c *Config) { c.LLMBaseURL = "" }},
		{"classifier temperature out of range", func(c *Config) { c.ClassifierTemperature = 2.5 }},
		{"non-positive classifier timeout", func(c *Config) { c.ClassifierTimeout = 0 }},
		{"negative retries", func(c *Config) { c.ClassifierMaxRetries = -1 }},
		{"non-positive handler timeout", func(c *Config) { c.HandlerTimeout = 0 }},
		{"confidence threshold above one", func(c *Config) { c.ConfidenceThreshold = 1.5 }},
		{"unknown memory backend", func(c *Config) { c.MemoryBackend = "disk" }},
		{"redis backend without addr", func(c *Config) {
			c.MemoryBackend = "redis"
			c.RedisAddr = ""
		}},
		{"invalid health port", func(c *Config) { c.HealthPort = 0 }},
		{"invalid log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStringOmitsSecrets(t *testing.T) {
	t.Setenv("REDIS_PASS", "hunter2")
	t.Setenv("LLM_API_KEY", "sk-secret")

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.String()
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "sk-secret")
}
