package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Lookup    LookupConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Matching  MatchingConfig
	Log       LogConfig
	Registry  RegistryConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LookupConfig holds the public data ingredient API configuration
type LookupConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// MatchingConfig holds the token correction thresholds
type MatchingConfig struct {
	Cutoff           float64 `mapstructure:"cutoff"`
	OCRMinConfidence float64 `mapstructure:"ocr_min_confidence"`
	Concurrency      int     `mapstructure:"concurrency"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// RegistryConfig points at an optional external ingredient seed
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// envKeys are bound explicitly so Unmarshal sees keys without defaults
var envKeys = []string{
	"server.port", "server.environment", "server.allowed_origins",
	"lookup.enabled", "lookup.api_key", "lookup.base_url", "lookup.timeout",
	"lookup.rate_per_second", "lookup.burst",
	"cache.type", "cache.redis_url", "cache.ttl",
	"ratelimit.per_ip",
	"matching.cutoff", "matching.ocr_min_confidence", "matching.concurrency",
	"log.level", "log.format",
	"registry.path",
}

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/clony/")

	// Environment variable settings: CLONY_CACHE_REDIS_URL -> cache.redis_url
	v.SetEnvPrefix("CLONY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env if present. Variables already in the environment win.
func loadEnvFile() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Lookup defaults
	v.SetDefault("lookup.enabled", true)
	v.SetDefault("lookup.base_url", "https://apis.data.go.kr/1471000/CsmtcsIngdCpntInfoService01")
	v.SetDefault("lookup.timeout", "5s")
	v.SetDefault("lookup.rate_per_second", 10)
	v.SetDefault("lookup.burst", 10)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "720h") // 30 days

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)

	// Matching defaults
	v.SetDefault("matching.cutoff", 0.7)
	v.SetDefault("matching.ocr_min_confidence", 0.35)
	v.SetDefault("matching.concurrency", 8)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Lookup.Enabled && config.Lookup.APIKey == "" {
		return fmt.Errorf("lookup API key is required when lookup is enabled (set CLONY_LOOKUP_API_KEY or CLONY_LOOKUP_ENABLED=false)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Matching.Cutoff <= 0 || config.Matching.Cutoff > 1 {
		return fmt.Errorf("matching cutoff must be in (0, 1], got: %v", config.Matching.Cutoff)
	}

	if config.Matching.OCRMinConfidence < 0 || config.Matching.OCRMinConfidence > 1 {
		return fmt.Errorf("OCR minimum confidence must be in [0, 1], got: %v", config.Matching.OCRMinConfidence)
	}

	if config.RateLimit.PerIP <= 0 {
		return fmt.Errorf("per-IP rate limit must be positive, got: %d", config.RateLimit.PerIP)
	}

	return nil
}
