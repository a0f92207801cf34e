package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort string
	LogLevel   string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	// AuditDriver selects the relational sink for regions and audit logs: "postgres" or "sqlite".
	AuditDriver string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PartitionTTL  time.Duration

	UpstreamMode    string
	UpstreamBaseURL string
	UpstreamTimeout time.Duration
	UpstreamMaxRPS  float64
	RegionDelay     time.Duration
	FetchMaxRetries int
	FetchRetryDelay time.Duration
	RegionsFile     string
	BrowserPoolSize int

	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIChatModel      string
	OpenAIEmbeddingModel string
	AITimeout            time.Duration
	AnalysisCacheTTL     time.Duration

	SchedulerEnabled    bool
	ScheduleTimezone    string
	ScheduleTestTrigger bool
}

// Load loads configuration from a local .env file (if any) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	return &Config{
		ServerPort:           getEnv("SERVER_PORT", "8080"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		PostgresHost:         getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:         getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:         getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:     getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:           getEnv("POSTGRES_DB", "listings"),
		AuditDriver:          strings.ToLower(getEnv("AUDIT_DRIVER", "postgres")),
		SQLitePath:           getEnv("SQLITE_PATH", "data/aggregator.db"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvAsInt("REDIS_DB", 0),
		PartitionTTL:         getEnvAsDuration("PARTITION_TTL_SECONDS", 86400) * time.Second,
		UpstreamMode:         strings.ToLower(getEnv("UPSTREAM_MODE", "http")),
		UpstreamBaseURL:      getEnv("UPSTREAM_BASE_URL", "https://www.daangn.com"),
		UpstreamTimeout:      getEnvAsDuration("UPSTREAM_TIMEOUT_SECONDS", 30) * time.Second,
		UpstreamMaxRPS:       getEnvAsFloat("UPSTREAM_MAX_RPS", 1),
		RegionDelay:          getEnvAsDuration("REGION_DELAY_MS", 2000) * time.Millisecond,
		FetchMaxRetries:      getEnvAsInt("FETCH_MAX_RETRIES", 3),
		FetchRetryDelay:      getEnvAsDuration("FETCH_RETRY_DELAY_SECONDS", 5) * time.Second,
		RegionsFile:          getEnv("REGIONS_FILE", ""),
		BrowserPoolSize:      getEnvAsInt("BROWSER_POOL_SIZE", 2),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIChatModel:      getEnv("OPENAI_CHAT_MODEL", "gpt-3.5-turbo"),
		OpenAIEmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		AITimeout:            getEnvAsDuration("AI_TIMEOUT_SECONDS", 30) * time.Second,
		AnalysisCacheTTL:     getEnvAsDuration("ANALYSIS_CACHE_TTL_SECONDS", 3600) * time.Second,
		SchedulerEnabled:     getEnvAsBool("SCHEDULER_ENABLED", true),
		ScheduleTimezone:     getEnv("SCHEDULE_TIMEZONE", "Asia/Seoul"),
		ScheduleTestTrigger:  getEnvAsBool("SCHEDULE_TEST_TRIGGER", false),
	}
}

// AIEnabled reports whether an AI backend key is configured.
func (c *Config) AIEnabled() bool {
	return strings.TrimSpace(c.OpenAIAPIKey) != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback))
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
