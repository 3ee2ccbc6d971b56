package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
	ReportsDir string
}

type ServerConfig struct {
	Host      string
	Port      int
	GinMode   string
	StaticDir string
}

type StoreConfig struct {
	Backend     string
	MongoURI    string
	MongoDB     string
	PostgresDSN string
	Timeout     time.Duration
}

// RedisConfig is optional. An empty Addr disables the response cache and the daily quota.
type RedisConfig struct {
	Addr     string
	Password string
	CacheTTL time.Duration
}

type AuthConfig struct {
	JWTSecret  string
	JWTExpiry  time.Duration
	BcryptCost int
}

type RateLimitConfig struct {
	Max           int
	Window        time.Duration
	AuthPerMinute int
	DailyQuota    int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// .env is optional when the variables come from the environment (Docker, CI).
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("HOST", ""),
			Port:      getEnvInt("PORT", 3000),
			GinMode:   getEnv("GIN_MODE", "release"),
			StaticDir: getEnv("STATIC_DIR", "public"),
		},
		Store: StoreConfig{
			Backend:     strings.ToLower(getEnv("STORE_BACKEND", BackendMongo)),
			MongoURI:    getEnv("MONGO_URI", ""),
			MongoDB:     getEnv("MONGO_DB", "eventsphere"),
			PostgresDSN: getEnv("DATABASE_URL", ""),
			Timeout:     time.Duration(getEnvInt("STORE_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			CacheTTL: time.Duration(getEnvInt("CACHE_TTL_SECONDS", 30)) * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			JWTExpiry:  time.Duration(getEnvInt("JWT_EXPIRY_MINUTES", 60)) * time.Minute,
			BcryptCost: getEnvInt("BCRYPT_COST", 10),
		},
		RateLimit: RateLimitConfig{
			Max:           getEnvInt("RATE_LIMIT_MAX", 100),
			Window:        time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MINUTES", 15)) * time.Minute,
			AuthPerMinute: getEnvInt("AUTH_RATE_LIMIT_PER_MINUTE", 30),
			DailyQuota:    getEnvInt("DAILY_QUOTA", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		ReportsDir: getEnv("REPORTS_DIR", "reports"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: PORT out of range: %d", c.Server.Port)
	}
	switch c.Store.Backend {
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return errors.New("config: MONGO_URI is required for the mongo backend")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("config: DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Store.Timeout <= 0 {
		return errors.New("config: STORE_TIMEOUT_SECONDS must be positive")
	}
	if c.Auth.JWTExpiry <= 0 {
		return errors.New("config: JWT_EXPIRY_MINUTES must be positive")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("config: RATE_LIMIT_MAX and RATE_LIMIT_WINDOW_MINUTES must be positive")
	}
	if c.RateLimit.AuthPerMinute <= 0 {
		return errors.New("config: AUTH_RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.Redis.CacheTTL <= 0 {
		return errors.New("config: CACHE_TTL_SECONDS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
