package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config is built once at startup and handed to every constructor. Keep it
// flat and comparable; App.validate compares it against the zero value.
type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	ServerPort  int    `mapstructure:"SERVER_PORT"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	DatabaseDriver       string `mapstructure:"DATABASE_DRIVER"`
	DatabaseDbPath       string `mapstructure:"DATABASE_DB_PATH"`
	DatabaseHost         string `mapstructure:"DATABASE_HOST"`
	DatabasePort         int    `mapstructure:"DATABASE_PORT"`
	DatabaseUser         string `mapstructure:"DATABASE_USER"`
	DatabasePassword     string `mapstructure:"DATABASE_PASSWORD"`
	DatabaseName         string `mapstructure:"DATABASE_NAME"`
	DatabaseCacheAddress string `mapstructure:"DATABASE_CACHE_ADDRESS"`
	DatabaseCachePort    int    `mapstructure:"DATABASE_CACHE_PORT"`

	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`

	RateLimitRequests      int `mapstructure:"RATE_LIMIT_REQUESTS"`
	RateLimitWindowSeconds int `mapstructure:"RATE_LIMIT_WINDOW_SECONDS"`

	AIProvider           string  `mapstructure:"AI_PROVIDER"`
	AIAPIKey             string  `mapstructure:"AI_API_KEY"`
	AIBaseURL            string  `mapstructure:"AI_BASE_URL"`
	AIModel              string  `mapstructure:"AI_MODEL"`
	AIEmbeddingModel     string  `mapstructure:"AI_EMBEDDING_MODEL"`
	AIEmbeddingDimension int     `mapstructure:"AI_EMBEDDING_DIMENSION"`
	AITemperature        float64 `mapstructure:"AI_TEMPERATURE"`
	AIMaxTokens          int     `mapstructure:"AI_MAX_TOKENS"`
	AITimeoutSeconds     int     `mapstructure:"AI_TIMEOUT_SECONDS"`
	AIRetryCount         int     `mapstructure:"AI_RETRY_COUNT"`
	AIRetryBaseDelayMs   int     `mapstructure:"AI_RETRY_BASE_DELAY_MS"`

	StatsCacheTTLSeconds int `mapstructure:"STATS_CACHE_TTL_SECONDS"`
}

var defaults = map[string]any{
	"ENVIRONMENT":               "development",
	"LOG_LEVEL":                 "info",
	"SERVER_PORT":               8280,
	"CORS_ORIGINS":              "*",
	"DATABASE_DRIVER":           "sqlite",
	"DATABASE_DB_PATH":          "data/reasondesk.db",
	"DATABASE_HOST":             "",
	"DATABASE_PORT":             5432,
	"DATABASE_USER":             "",
	"DATABASE_PASSWORD":         "",
	"DATABASE_NAME":             "reasondesk",
	"DATABASE_CACHE_ADDRESS":    "",
	"DATABASE_CACHE_PORT":       6379,
	"AUTH_JWT_SECRET":           "",
	"RATE_LIMIT_REQUESTS":       100,
	"RATE_LIMIT_WINDOW_SECONDS": 60,
	"AI_PROVIDER":               "stub",
	"AI_API_KEY":                "",
	"AI_BASE_URL":               "https://generativelanguage.googleapis.com/v1beta",
	"AI_MODEL":                  "gemini-1.5-flash",
	"AI_EMBEDDING_MODEL":        "text-embedding-004",
	"AI_EMBEDDING_DIMENSION":    768,
	"AI_TEMPERATURE":            0.7,
	"AI_MAX_TOKENS":             1024,
	"AI_TIMEOUT_SECONDS":        30,
	"AI_RETRY_COUNT":            3,
	"AI_RETRY_BASE_DELAY_MS":    1000,
	"STATS_CACHE_TTL_SECONDS":   300,
}

// InitConfig reads defaults, then environment variables. The .env file, if
// any, is loaded into the environment by the cmd entrypoints before this runs.
func InitConfig() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, err
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite":
		if c.DatabaseDbPath == "" {
			return errors.New("DATABASE_DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.DatabaseHost == "" || c.DatabaseName == "" {
			return errors.New("DATABASE_HOST and DATABASE_NAME are required for the postgres driver")
		}
	default:
		return errors.New("DATABASE_DRIVER must be sqlite or postgres")
	}

	switch c.AIProvider {
	case "stub":
	case "gemini":
		if c.AIAPIKey == "" {
			return errors.New("AI_API_KEY is required for the gemini provider")
		}
	default:
		return errors.New("AI_PROVIDER must be gemini or stub")
	}

	if c.AIEmbeddingDimension <= 0 {
		return errors.New("AI_EMBEDDING_DIMENSION must be positive")
	}

	return nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
