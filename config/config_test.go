package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig_Defaults(t *testing.T) {
	cfg, err := InitConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "stub", cfg.AIProvider)
	assert.Equal(t, 768, cfg.AIEmbeddingDimension)
	assert.Equal(t, 3, cfg.AIRetryCount)
	assert.Equal(t, 1000, cfg.AIRetryBaseDelayMs)
}

func TestInitConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("AI_EMBEDDING_DIMENSION", "16")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("DATABASE_DB_PATH", "/tmp/other.db")

	cfg, err := InitConfig()
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.AIEmbeddingDimension)
	assert.Equal(t, 5, cfg.RateLimitRequests)
	assert.Equal(t, "/tmp/other.db", cfg.DatabaseDbPath)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		DatabaseDriver:       "sqlite",
		DatabaseDbPath:       ":memory:",
		AIProvider:           "stub",
		AIEmbeddingDimension: 8,
	}

	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:     "unknown driver",
			mutate:   func(c *Config) { c.DatabaseDriver = "mysql" },
			errorMsg: "DATABASE_DRIVER",
		},
		{
			name:     "sqlite without path",
			mutate:   func(c *Config) { c.DatabaseDbPath = "" },
			errorMsg: "DATABASE_DB_PATH",
		},
		{
			name:     "postgres without host",
			mutate:   func(c *Config) { c.DatabaseDriver = "postgres" },
			errorMsg: "DATABASE_HOST",
		},
		{
			name:     "gemini without key",
			mutate:   func(c *Config) { c.AIProvider = "gemini" },
			errorMsg: "AI_API_KEY",
		},
		{
			name:     "zero dimension",
			mutate:   func(c *Config) { c.AIEmbeddingDimension = 0 },
			errorMsg: "AI_EMBEDDING_DIMENSION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}
