// Package config loads the service configuration from an optional YAML file
// and the environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	DatabaseDriver string `yaml:"database_driver"`
	DatabaseURL    string `yaml:"database_url"`

	KafkaBroker      string `yaml:"kafka_broker"`
	OrderEventsTopic string `yaml:"order_events_topic"`

	RedisURL        string        `yaml:"redis_url"`
	ProductCacheTTL time.Duration `yaml:"product_cache_ttl"`

	OtelEndpoint   string `yaml:"otel_endpoint"`
	OtelAuthHeader string `yaml:"otel_auth_header"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	LogLevel string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		HTTPAddr:         ":8082",
		DatabaseDriver:   DriverPostgres,
		OrderEventsTopic: "order-events",
		ProductCacheTTL:  5 * time.Minute,
		RateLimitRPS:     50,
		RateLimitBurst:   100,
		LogLevel:         "info",
	}
}

// Load reads path (when non-empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	str("HTTP_ADDR", &c.HTTPAddr)
	str("DATABASE_DRIVER", &c.DatabaseDriver)
	str("DATABASE_URL", &c.DatabaseURL)
	str("KAFKA_BROKER", &c.KafkaBroker)
	str("ORDER_EVENTS_TOPIC", &c.OrderEventsTopic)
	str("REDIS_URL", &c.RedisURL)
	str("OTEL_ENDPOINT", &c.OtelEndpoint)
	str("OTEL_AUTH_HEADER", &c.OtelAuthHeader)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("PRODUCT_CACHE_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PRODUCT_CACHE_TTL: %w", err)
		}
		c.ProductCacheTTL = d
	}
	if v, ok := lookup("RATE_LIMIT_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimitRPS = f
	}
	if v, ok := lookup("RATE_LIMIT_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		c.RateLimitBurst = n
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverPgx:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be one of %s, %s, %s, got %q", DriverPostgres, DriverPgx, DriverMemory, c.DatabaseDriver)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if c.KafkaBroker != "" && c.OrderEventsTopic == "" {
		return fmt.Errorf("ORDER_EVENTS_TOPIC is required when KAFKA_BROKER is set")
	}
	if c.ProductCacheTTL <= 0 {
		return fmt.Errorf("PRODUCT_CACHE_TTL must be positive, got %s", c.ProductCacheTTL)
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %v", c.RateLimitRPS)
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1, got %d", c.RateLimitBurst)
	}
	return nil
}
