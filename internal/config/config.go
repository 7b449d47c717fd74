package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App         AppConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Auth        AuthConfig
	Wildberries WildberriesConfig
	Ingest      IngestConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters for the internal API.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	APIKeyHash            string
	BcryptCost            int
}

// WildberriesConfig holds endpoints and timeouts for the seller API.
type WildberriesConfig struct {
	ChatBaseURL       string
	FeedbacksBaseURL  string
	RequestTimeoutSec int
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	PollIntervalMinutes int
	DedupTTLMinutes     int
	ProfileSpacingSec   int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "marketplace-support"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			APIKeyHash:            os.Getenv("AUTH_API_KEY_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Wildberries: WildberriesConfig{
			ChatBaseURL:       getEnv("WB_CHAT_BASE_URL", "https://buyer-chat-api.wildberries.ru"),
			FeedbacksBaseURL:  getEnv("WB_FEEDBACKS_BASE_URL", "https://feedbacks-api.wildberries.ru"),
			RequestTimeoutSec: getEnvAsInt("WB_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Ingest: IngestConfig{
			PollIntervalMinutes: getEnvAsInt("INGEST_POLL_INTERVAL_MINUTES", 5),
			DedupTTLMinutes:     getEnvAsInt("INGEST_DEDUP_TTL_MINUTES", 60),
			ProfileSpacingSec:   getEnvAsInt("INGEST_PROFILE_SPACING_SECONDS", 5),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// IsProduction reports whether outbound platform mutations are allowed.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// PollInterval returns the scheduler period.
func (i IngestConfig) PollInterval() time.Duration {
	if i.PollIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(i.PollIntervalMinutes) * time.Minute
}

// DedupTTL returns the deduplicator entry lifetime.
func (i IngestConfig) DedupTTL() time.Duration {
	if i.DedupTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(i.DedupTTLMinutes) * time.Minute
}

// ProfileSpacing returns the enqueue delay between profiles in one sweep.
func (i IngestConfig) ProfileSpacing() time.Duration {
	if i.ProfileSpacingSec < 0 {
		return 0
	}
	return time.Duration(i.ProfileSpacingSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
