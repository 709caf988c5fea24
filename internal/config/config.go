package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Storage: DATABASE_URL selects PostgreSQL, otherwise datasets live in
	// memory and are persisted to DataFile when set.
	DatabaseURL string
	DataFile    string
	SeedDir     string

	CatalogPath   string
	SVGPath       string
	PageCacheSize int

	// Kafka publishing is disabled when no brokers are configured.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePageCacheSize()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DataFile:    os.Getenv("DATA_FILE"),
		SeedDir:     os.Getenv("SEED_DIR"),

		CatalogPath:   os.Getenv("CATALOG_PATH"),
		SVGPath:       os.Getenv("SVG_PATH"),
		PageCacheSize: cacheSize,

		KafkaBrokers: sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "insurance-map-updates"),
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("HTTP_ADDR is required")
	}
	if cfg.DatabaseURL != "" && cfg.DataFile != "" {
		return nil, errors.New("DATABASE_URL and DATA_FILE are mutually exclusive")
	}

	return cfg, nil
}

// KafkaEnabled reports whether import events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePageCacheSize() (int, error) {
	s := os.Getenv("PAGE_CACHE_SIZE")
	if s == "" {
		return 256, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid PAGE_CACHE_SIZE %q: must be a non-negative integer", s)
	}
	return n, nil
}
