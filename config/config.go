package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Catalog    CatalogConfig
	Rules      RulesConfig
	Normalizer NormalizerConfig
	Solver     SolverConfig
	Cache      CacheConfig
	Store      StoreConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Debug          bool     `mapstructure:"debug"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
}

// CatalogConfig selects where catalogs come from when a request carries none
type CatalogConfig struct {
	Source            string        `mapstructure:"source"` // "none", "file" or "http"
	Path              string        `mapstructure:"path"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Format            string        `mapstructure:"format"` // "raw" or "off"
	PageSize          int           `mapstructure:"page_size"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// RulesConfig points at the rule file
type RulesConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// NormalizerConfig holds catalog normalization settings
type NormalizerConfig struct {
	ReferenceGrams float64 `mapstructure:"reference_grams"`
	Workers        int     `mapstructure:"workers"`
	FuzzyMatching  bool    `mapstructure:"fuzzy_matching"`
}

// SolverConfig holds LP solve and validation settings
type SolverConfig struct {
	Tolerance           float64       `mapstructure:"tolerance"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxDiagnosisRules   int           `mapstructure:"max_diagnosis_rules"`
	ValidationTolerance float64       `mapstructure:"validation_tolerance"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "none", "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StoreConfig holds run persistence configuration
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
	Burst int `mapstructure:"burst"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration like Load, reading the given file instead of
// searching for config.yaml when path is set.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/grocer/")
	}

	// GROCER_SERVER_PORT overrides server.port
	v.SetEnvPrefix("GROCER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.debug", false)
	v.SetDefault("server.max_body_bytes", 8<<20)

	// Catalog defaults
	v.SetDefault("catalog.source", "none")
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.base_url", "")
	v.SetDefault("catalog.api_key", "")
	v.SetDefault("catalog.format", "raw")
	v.SetDefault("catalog.page_size", 200)
	v.SetDefault("catalog.requests_per_second", 2.0)
	v.SetDefault("catalog.burst", 5)
	v.SetDefault("catalog.max_retries", 3)
	v.SetDefault("catalog.timeout", "30s")

	// Rules defaults
	v.SetDefault("rules.path", "")
	v.SetDefault("rules.watch", false)

	// Normalizer defaults
	v.SetDefault("normalizer.reference_grams", 100.0)
	v.SetDefault("normalizer.workers", 0)
	v.SetDefault("normalizer.fuzzy_matching", true)

	// Solver defaults
	v.SetDefault("solver.tolerance", 1e-10)
	v.SetDefault("solver.timeout", "30s")
	v.SetDefault("solver.max_diagnosis_rules", 64)
	v.SetDefault("solver.validation_tolerance", 1e-6)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.prefix", "grocer:")
	v.SetDefault("cache.ttl", "24h")

	// Store defaults
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", "./data/runs.db")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 60)
	v.SetDefault("ratelimit.burst", 10)
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Catalog.Source {
	case "none":
	case "file":
		if config.Catalog.Path == "" {
			return fmt.Errorf("catalog path is required when catalog source is 'file' (set GROCER_CATALOG_PATH)")
		}
	case "http":
		if config.Catalog.BaseURL == "" {
			return fmt.Errorf("catalog base URL is required when catalog source is 'http' (set GROCER_CATALOG_BASE_URL)")
		}
		if config.Catalog.Format != "raw" && config.Catalog.Format != "off" {
			return fmt.Errorf("catalog format must be 'raw' or 'off', got: %s", config.Catalog.Format)
		}
	default:
		return fmt.Errorf("catalog source must be 'none', 'file' or 'http', got: %s", config.Catalog.Source)
	}

	if config.Rules.Watch && config.Rules.Path == "" {
		return fmt.Errorf("rules path is required when rules watching is enabled")
	}

	if config.Normalizer.ReferenceGrams <= 0 {
		return fmt.Errorf("normalizer reference grams must be positive, got: %g", config.Normalizer.ReferenceGrams)
	}

	if config.Solver.Timeout <= 0 {
		return fmt.Errorf("solver timeout must be positive, got: %s", config.Solver.Timeout)
	}
	if config.Solver.ValidationTolerance <= 0 || config.Solver.ValidationTolerance >= 1 {
		return fmt.Errorf("validation tolerance must be in (0, 1), got: %g", config.Solver.ValidationTolerance)
	}

	switch config.Cache.Type {
	case "none", "memory":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when cache type is 'redis'")
		}
	default:
		return fmt.Errorf("cache type must be 'none', 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Store.Enabled && config.Store.Path == "" {
		return fmt.Errorf("store path is required when run persistence is enabled")
	}

	if config.RateLimit.PerIP < 0 {
		return fmt.Errorf("per-IP rate limit cannot be negative, got: %d", config.RateLimit.PerIP)
	}

	return nil
}
