package config

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv    string
	DBPath    string
	DBDriver  string
	RedisAddr string
	HTTPPort  int

	ClassifierBaseURL string
	ClassifierAPIKey  string
	ClassifierModel   string
	ClassifierTimeout time.Duration

	TaxonomyPath string

	EnrichEnabled     bool
	EnrichBatchSize   int
	EnrichConcurrency int
	EnrichIdleWait    time.Duration

	CacheTTL time.Duration
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		DBPath:    getEnv("DB_PATH", "./data/nps.db"),
		DBDriver:  getEnv("DB_DRIVER", "sqlite3"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		HTTPPort:  getEnvInt("HTTP_PORT", 8080),

		ClassifierBaseURL: getEnv("CLASSIFIER_BASE_URL", "https://api.openai.com/v1"),
		ClassifierAPIKey:  getEnv("CLASSIFIER_API_KEY", ""),
		ClassifierModel:   getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
		ClassifierTimeout: getEnvDuration("CLASSIFIER_TIMEOUT", 15*time.Second),

		TaxonomyPath: getEnv("TAXONOMY_PATH", ""),

		EnrichEnabled:     getEnvBool("ENRICH_ENABLED", true),
		EnrichBatchSize:   getEnvInt("ENRICH_BATCH_SIZE", 50),
		EnrichConcurrency: getEnvInt("ENRICH_CONCURRENCY", 4),
		EnrichIdleWait:    getEnvDuration("ENRICH_IDLE_WAIT", 30*time.Second),

		CacheTTL: getEnvDuration("CACHE_TTL", 10*time.Minute),
	}
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}

func getEnvBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}
