package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Relevance providers
const (
	RelevanceProviderLeo       = "leo"
	RelevanceProviderTypesense = "typesense"
)

// Catalog sources
const (
	CatalogSourceHTTP     = "http"
	CatalogSourcePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Env       string
	LogLevel  string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	Relevance RelevanceConfig
	Catalog   CatalogConfig
	Search    SearchConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Enabled  bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// RelevanceConfig selects and tunes the ranking backend
type RelevanceConfig struct {
	Provider        string
	URL             string
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

// CatalogConfig selects where entity records are loaded from
type CatalogConfig struct {
	Source            string
	BaseURL           string
	CacheTTLSeconds   int
	CacheWarmInterval time.Duration
}

// SearchConfig holds aggregation and session tuning
type SearchConfig struct {
	MaxConcurrentFetches int
	FetchTimeout         time.Duration
	DefaultLimit         int
	PageSize             int
	SessionTTL           time.Duration
	MaxSessions          int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "brakebee"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Enabled:  getEnvAsBool("DB_ENABLED", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		Relevance: RelevanceConfig{
			Provider:        strings.ToLower(getEnv("RELEVANCE_PROVIDER", RelevanceProviderLeo)),
			URL:             getEnv("RELEVANCE_URL", "http://localhost:3000/api/leo-search"),
			Timeout:         getEnvAsDuration("RELEVANCE_TIMEOUT", 10*time.Second),
			BreakerFailures: getEnvAsInt("RELEVANCE_BREAKER_FAILURES", 5),
			BreakerCooldown: getEnvAsDuration("RELEVANCE_BREAKER_COOLDOWN", 30*time.Second),
		},
		Catalog: CatalogConfig{
			Source:            strings.ToLower(getEnv("CATALOG_SOURCE", CatalogSourceHTTP)),
			BaseURL:           getEnv("CATALOG_BASE_URL", "http://localhost:3001/api"),
			CacheTTLSeconds:   getEnvAsInt("CATALOG_CACHE_TTL_SECONDS", 300),
			CacheWarmInterval: getEnvAsDuration("CACHE_WARM_INTERVAL", 10*time.Minute),
		},
		Search: SearchConfig{
			MaxConcurrentFetches: getEnvAsInt("SEARCH_MAX_CONCURRENT_FETCHES", 8),
			FetchTimeout:         getEnvAsDuration("SEARCH_FETCH_TIMEOUT", 5*time.Second),
			DefaultLimit:         getEnvAsInt("SEARCH_DEFAULT_LIMIT", 20),
			PageSize:             getEnvAsInt("SEARCH_PAGE_SIZE", 20),
			SessionTTL:           getEnvAsDuration("SEARCH_SESSION_TTL", 30*time.Minute),
			MaxSessions:          getEnvAsInt("SEARCH_MAX_SESSIONS", 10000),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "brakebee-search"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the search core cannot run with
func (c *Config) Validate() error {
	switch c.Relevance.Provider {
	case RelevanceProviderLeo, RelevanceProviderTypesense:
	default:
		return fmt.Errorf("unknown RELEVANCE_PROVIDER %q", c.Relevance.Provider)
	}
	switch c.Catalog.Source {
	case CatalogSourceHTTP, CatalogSourcePostgres:
	default:
		return fmt.Errorf("unknown CATALOG_SOURCE %q", c.Catalog.Source)
	}
	if c.Search.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("SEARCH_MAX_CONCURRENT_FETCHES must be positive, got %d", c.Search.MaxConcurrentFetches)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.PageSize <= 0 {
		return fmt.Errorf("SEARCH_DEFAULT_LIMIT and SEARCH_PAGE_SIZE must be positive")
	}
	if c.Search.FetchTimeout <= 0 || c.Relevance.Timeout <= 0 {
		return fmt.Errorf("SEARCH_FETCH_TIMEOUT and RELEVANCE_TIMEOUT must be positive")
	}
	if c.Search.MaxSessions <= 0 {
		return fmt.Errorf("SEARCH_MAX_SESSIONS must be positive, got %d", c.Search.MaxSessions)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
