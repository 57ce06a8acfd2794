// Package config loads process settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"reccache.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	CacheProvider      string        `env:"CACHE_PROVIDER" envDefault:"redis"`
	CacheNamespace     string        `env:"CACHE_NAMESPACE" envDefault:"passengers"`
	CacheCodec         string        `env:"CACHE_CODEC" envDefault:"json"`
	CacheTTL           time.Duration `env:"CACHE_TTL" envDefault:"0s"`
	CacheMaxDecode     int           `env:"CACHE_MAX_DECODE" envDefault:"1048576"`
	GenStore           string        `env:"GEN_STORE" envDefault:"local"`
	BigCacheLifeWindow time.Duration `env:"BIGCACHE_LIFE_WINDOW" envDefault:"24h"`
	RistrettoMaxCost   int64         `env:"RISTRETTO_MAX_COST" envDefault:"1048576"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	Workers int `env:"WORKERS" envDefault:"8"`

	LogBackend string `env:"LOG_BACKEND" envDefault:"zap"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the given .env files (default ".env") when they exist, then
// parses the environment. Variables already set win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown enum values and settings the chosen backends
// cannot run without.
func (c Config) Validate() error {
	var errs []error
	check := func(name, v string, allowed ...string) {
		for _, a := range allowed {
			if v == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, "|"), v))
	}
	check("STORE_DRIVER", c.StoreDriver, "sqlite", "postgres", "memory")
	check("CACHE_PROVIDER", c.CacheProvider, "redis", "bigcache", "ristretto")
	check("CACHE_CODEC", c.CacheCodec, "json", "msgpack", "cbor", "protobuf")
	check("GEN_STORE", c.GenStore, "local", "redis")
	check("LOG_BACKEND", c.LogBackend, "zap", "logrus", "slog")

	if c.StoreDriver == "postgres" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for STORE_DRIVER=postgres"))
	}
	if c.StoreDriver == "sqlite" && strings.TrimSpace(c.SQLitePath) == "" {
		errs = append(errs, errors.New("SQLITE_PATH is required for STORE_DRIVER=sqlite"))
	}
	if c.CacheNamespace == "" {
		errs = append(errs, errors.New("CACHE_NAMESPACE must not be empty"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("WORKERS must be positive, got %d", c.Workers))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}
	if c.CacheProvider == "bigcache" && c.BigCacheLifeWindow <= 0 {
		errs = append(errs, errors.New("BIGCACHE_LIFE_WINDOW must be positive"))
	}
	if c.CacheProvider == "ristretto" && c.RistrettoMaxCost <= 0 {
		errs = append(errs, errors.New("RISTRETTO_MAX_COST must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// NeedsRedis reports whether any configured component talks to Redis.
func (c Config) NeedsRedis() bool {
	return c.CacheProvider == "redis" || c.GenStore == "redis"
}
