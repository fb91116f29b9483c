package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported DB_TYPE values
const (
	DatabaseTypePostgreSQL = "postgresql"
	DatabaseTypeMemory     = "memory"
)

// Config is the full service configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	JWT        JWTConfig        `json:"jwt"`
	Cache      CacheConfig      `json:"cache"`
	RateLimits RateLimitsConfig `json:"rateLimits"`
	Votes      VotesConfig      `json:"votes"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	BaseRoute   string `json:"baseRoute"`
	WebDomain   string `json:"webDomain"`
	Debug       bool   `json:"debug"`
	MetricsPath string `json:"metricsPath"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Type        string           `json:"type"`
	AutoMigrate bool             `json:"autoMigrate"`
	Postgres    PostgreSQLConfig `json:"postgres"`
}

// PostgreSQLConfig holds PostgreSQL-specific configuration
type PostgreSQLConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	Database        string        `json:"database"`
	DSN             string        `json:"dsn"`
	SSLMode         string        `json:"sslMode"`
	Schema          string        `json:"schema"`
	MaxOpenConns    int           `json:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	PublicKey string `json:"publicKey"`
}

// CacheConfig holds the server-side idea page cache configuration
type CacheConfig struct {
	MaxMemory       int64         `json:"maxMemory"`
	TTL             time.Duration `json:"ttl"`
	Enabled         bool          `json:"enabled"`
	Backend         string        `json:"backend"`
	Prefix          string        `json:"prefix"`
	CleanupInterval time.Duration `json:"cleanupInterval"`
	Redis           RedisConfig   `json:"redis"`
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	Address        string        `json:"address"`
	Password       string        `json:"password"`
	Database       int           `json:"database"`
	PoolSize       int           `json:"poolSize"`
	MinIdleConns   int           `json:"minIdleConns"`
	MaxConnAge     time.Duration `json:"maxConnAge"`
	ClusterEnabled bool          `json:"clusterEnabled"`
	ClusterAddrs   []string      `json:"clusterAddrs"`
}

// RateLimitConfig holds rate limiting configuration for a specific endpoint
type RateLimitConfig struct {
	Enabled  bool          `json:"enabled"`
	Max      int           `json:"max"`
	Duration time.Duration `json:"duration"`
}

// RateLimitsConfig holds rate limiting configuration for all endpoints
type RateLimitsConfig struct {
	Vote       RateLimitConfig `json:"vote"`
	IdeaCreate RateLimitConfig `json:"ideaCreate"`
}

// VotesConfig tunes the vote ledger
type VotesConfig struct {
	// ConflictRetries bounds how often a vote is re-run after losing a uniqueness race
	ConflictRetries int `json:"conflictRetries"`
	// Timeout bounds one vote transaction
	Timeout time.Duration `json:"timeout"`
}

// LoadFromEnv loads configuration from the environment.
// Precedence: explicit environment variables, then the .env file, then defaults.
func LoadFromEnv() (*Config, error) {
	// godotenv.Load never overrides variables that are already set.
	envPaths := []string{".env", "../.env", "../../.env"}

	var loadErr error
	for _, envPath := range envPaths {
		loadErr = godotenv.Load(envPath)
		if loadErr == nil {
			break
		}
	}
	if loadErr != nil {
		fmt.Println("INFO: .env file not found, using environment variables and defaults.")
	}

	return load(func(key string) (string, bool) {
		value := os.Getenv(key)
		return value, value != ""
	})
}

// LoadFromMap loads configuration from an in-memory map.
// It is the helper for testing configuration logic without touching the process environment.
func LoadFromMap(envMap map[string]string) (*Config, error) {
	return load(func(key string) (string, bool) {
		value, ok := envMap[key]
		return value, ok
	})
}

func load(lookup func(string) (string, bool)) (*Config, error) {
	env := source(lookup)

	config := &Config{
		Server: ServerConfig{
			Host:        env.getString("HOST", "localhost"),
			Port:        env.getInt("SERVER_PORT", 8080),
			BaseRoute:   env.getString("BASE_ROUTE", "/api"),
			WebDomain:   env.getString("WEB_DOMAIN", "http://localhost:3000"),
			Debug:       env.getBool("DEBUG", false),
			MetricsPath: env.getString("METRICS_PATH", "/metrics"),
		},
		Database: DatabaseConfig{
			Type:        env.getString("DB_TYPE", DatabaseTypePostgreSQL),
			AutoMigrate: env.getBool("DB_AUTO_MIGRATE", true),
			Postgres: PostgreSQLConfig{
				Host:            env.getString("POSTGRES_HOST", "localhost"),
				Port:            env.getInt("POSTGRES_PORT", 5432),
				Username:        env.getString("POSTGRES_USERNAME", "postgres"),
				Password:        env.getString("POSTGRES_PASSWORD", ""),
				Database:        env.getString("POSTGRES_DATABASE", "nextup"),
				DSN:             env.getString("POSTGRES_DSN", ""),
				SSLMode:         env.getString("POSTGRES_SSL_MODE", "disable"),
				Schema:          env.getString("POSTGRES_SCHEMA", ""),
				MaxOpenConns:    env.getInt("POSTGRES_MAX_OPEN_CONNS", 25),
				MaxIdleConns:    env.getInt("POSTGRES_MAX_IDLE_CONNS", 25),
				ConnMaxLifetime: time.Duration(env.getInt("POSTGRES_CONN_MAX_LIFETIME", 300)) * time.Second,
			},
		},
		JWT: JWTConfig{
			PublicKey: env.getString("JWT_PUBLIC_KEY", ""),
		},
		Cache: CacheConfig{
			MaxMemory:       env.getInt64("CACHE_MAX_MEMORY", 100*1024*1024),
			TTL:             env.getDuration("CACHE_TTL", 5*time.Minute),
			Enabled:         env.getBool("CACHE_ENABLED", true),
			Backend:         env.getString("CACHE_BACKEND", "memory"),
			Prefix:          env.getString("CACHE_PREFIX", "nextup:"),
			CleanupInterval: env.getDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
			Redis: RedisConfig{
				Address:        env.getString("REDIS_ADDRESS", "localhost:6379"),
				Password:       env.getString("REDIS_PASSWORD", ""),
				Database:       env.getInt("REDIS_DATABASE", 0),
				PoolSize:       env.getInt("REDIS_POOL_SIZE", 10),
				MinIdleConns:   env.getInt("REDIS_MIN_IDLE_CONNS", 5),
				MaxConnAge:     time.Duration(env.getInt("REDIS_MAX_CONN_AGE", 300)) * time.Second,
				ClusterEnabled: env.getBool("REDIS_CLUSTER_ENABLED", false),
				ClusterAddrs:   env.getList("REDIS_CLUSTER_ADDRESSES", []string{"localhost:6379"}),
			},
		},
		RateLimits: RateLimitsConfig{
			Vote: RateLimitConfig{
				Enabled:  env.getBool("RATE_LIMIT_VOTE_ENABLED", true),
				Max:      env.getInt("RATE_LIMIT_VOTE_MAX", 60),
				Duration: env.getDuration("RATE_LIMIT_VOTE_DURATION", time.Minute),
			},
			IdeaCreate: RateLimitConfig{
				Enabled:  env.getBool("RATE_LIMIT_IDEA_CREATE_ENABLED", true),
				Max:      env.getInt("RATE_LIMIT_IDEA_CREATE_MAX", 10),
				Duration: env.getDuration("RATE_LIMIT_IDEA_CREATE_DURATION", time.Hour),
			},
		},
		Votes: VotesConfig{
			ConflictRetries: env.getInt("VOTE_CONFLICT_RETRIES", 3),
			Timeout:         env.getDuration("VOTE_TIMEOUT", 5*time.Second),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration for required fields
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.JWT.PublicKey) == "" {
		errors = append(errors, "JWT_PUBLIC_KEY is required")
	}

	validDbTypes := []string{DatabaseTypePostgreSQL, DatabaseTypeMemory}
	if !contains(validDbTypes, c.Database.Type) {
		errors = append(errors, fmt.Sprintf("DB_TYPE must be one of: %s", strings.Join(validDbTypes, ", ")))
	}

	validBackends := []string{"memory", "redis"}
	if !contains(validBackends, c.Cache.Backend) {
		errors = append(errors, fmt.Sprintf("CACHE_BACKEND must be one of: %s", strings.Join(validBackends, ", ")))
	}

	if c.Votes.ConflictRetries < 1 {
		errors = append(errors, "VOTE_CONFLICT_RETRIES must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// PostgresURL returns the DSN, building one from the discrete fields when unset
func (p PostgreSQLConfig) PostgresURL() string {
	if p.DSN != "" {
		return p.DSN
	}
	url := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.Username, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
	if p.Schema != "" {
		url += "&search_path=" + p.Schema
	}
	return url
}

// source wraps a lookup function with typed getters that fall back to defaults
type source func(string) (string, bool)

func (s source) getString(key, defaultValue string) string {
	if value, ok := s(key); ok {
		return value
	}
	return defaultValue
}

func (s source) getInt(key string, defaultValue int) int {
	if value, ok := s(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (s source) getInt64(key string, defaultValue int64) int64 {
	if value, ok := s(key); ok {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (s source) getBool(key string, defaultValue bool) bool {
	if value, ok := s(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func (s source) getDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := s(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func (s source) getList(key string, defaultValue []string) []string {
	value, ok := s(key)
	if !ok || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
