// Package config loads the intake runtime configuration from an optional YAML
// file and MORTGAGEINTAKE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MORTGAGEINTAKE_"

// Storage selects the application store backend.
type Storage struct {
	Driver      string `yaml:"driver"` // memory | sqlite | postgres
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
}

// Places configures the place-lookup client and the address stage.
type Places struct {
	APIKey      string        `yaml:"api_key,omitempty"`
	BaseURL     string        `yaml:"base_url,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Rate        float64       `yaml:"rate,omitempty"` // requests per second; 0 disables throttling
	Burst       int           `yaml:"burst,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
}

// Cache configures the resolved-address cache.
type Cache struct {
	Driver    string        `yaml:"driver"` // none | memory | redis
	Size      int           `yaml:"size,omitempty"`
	RedisAddr string        `yaml:"redis_addr,omitempty"`
	Password  string        `yaml:"redis_password,omitempty"`
	DB        int           `yaml:"redis_db,omitempty"`
	TTL       time.Duration `yaml:"ttl,omitempty"`
}

// Archive configures where execution reports are stored.
type Archive struct {
	Driver     string `yaml:"driver"` // none | memory | fs | s3
	FSRoot     string `yaml:"fs_root,omitempty"`
	S3Bucket   string `yaml:"s3_bucket,omitempty"`
	S3Region   string `yaml:"s3_region,omitempty"`
	S3Endpoint string `yaml:"s3_endpoint,omitempty"`
	PathStyle  bool   `yaml:"s3_path_style,omitempty"`
}

// Observability selects the metrics and tracing exporters.
type Observability struct {
	Metrics string `yaml:"metrics"` // none | expvar | prometheus
	Tracing string `yaml:"tracing"` // none | json | otel
}

// Config is the complete runtime configuration.
type Config struct {
	LogLevel      string        `yaml:"log_level"`
	Storage       Storage       `yaml:"storage"`
	Places        Places        `yaml:"places"`
	Cache         Cache         `yaml:"cache"`
	Archive       Archive       `yaml:"archive"`
	Observability Observability `yaml:"observability"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel: "info",
		Storage:  Storage{Driver: "sqlite", SQLitePath: "mortgageintake.db"},
		Places: Places{
			Timeout:     8 * time.Second,
			Burst:       1,
			Concurrency: 4,
		},
		Cache:         Cache{Driver: "memory", Size: 512, TTL: 24 * time.Hour},
		Archive:       Archive{Driver: "none", FSRoot: "./reportdata"},
		Observability: Observability{Metrics: "none", Tracing: "none"},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides. A missing file is an error only when path was given.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer func() { _ = f.Close() }()
		if err := decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	parse := func(name string, fn func(string) error) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			if err := fn(v); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			}
		}
	}
	str("LOG_LEVEL", &cfg.LogLevel)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	str("PLACES_API_KEY", &cfg.Places.APIKey)
	str("PLACES_BASE_URL", &cfg.Places.BaseURL)
	parse("PLACES_TIMEOUT", func(v string) (err error) { cfg.Places.Timeout, err = time.ParseDuration(v); return })
	parse("PLACES_RATE", func(v string) (err error) { cfg.Places.Rate, err = strconv.ParseFloat(v, 64); return })
	parse("PLACES_BURST", func(v string) (err error) { cfg.Places.Burst, err = strconv.Atoi(v); return })
	parse("PLACES_CONCURRENCY", func(v string) (err error) { cfg.Places.Concurrency, err = strconv.Atoi(v); return })
	str("CACHE_DRIVER", &cfg.Cache.Driver)
	str("REDIS_ADDR", &cfg.Cache.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Cache.Password)
	parse("REDIS_DB", func(v string) (err error) { cfg.Cache.DB, err = strconv.Atoi(v); return })
	parse("CACHE_TTL", func(v string) (err error) { cfg.Cache.TTL, err = time.ParseDuration(v); return })
	str("ARCHIVE_DRIVER", &cfg.Archive.Driver)
	str("ARCHIVE_FS_ROOT", &cfg.Archive.FSRoot)
	str("ARCHIVE_S3_BUCKET", &cfg.Archive.S3Bucket)
	str("ARCHIVE_S3_REGION", &cfg.Archive.S3Region)
	str("ARCHIVE_S3_ENDPOINT", &cfg.Archive.S3Endpoint)
	parse("ARCHIVE_S3_PATH_STYLE", func(v string) (err error) { cfg.Archive.PathStyle, err = strconv.ParseBool(v); return })
	str("METRICS", &cfg.Observability.Metrics)
	str("TRACING", &cfg.Observability.Tracing)
	return errors.Join(errs...)
}

// Validate rejects unknown driver names and negative limits.
func (c Config) Validate() error {
	var errs []error
	oneOf := func(field, v string, allowed ...string) {
		for _, a := range allowed {
			if v == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown value %q (want %s)", field, v, strings.Join(allowed, "|")))
	}
	oneOf("storage.driver", c.Storage.Driver, "memory", "sqlite", "postgres")
	oneOf("cache.driver", c.Cache.Driver, "none", "memory", "redis")
	oneOf("archive.driver", c.Archive.Driver, "none", "memory", "fs", "s3")
	oneOf("observability.metrics", c.Observability.Metrics, "none", "expvar", "prometheus")
	oneOf("observability.tracing", c.Observability.Tracing, "none", "json", "otel")
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Places.Rate < 0 || c.Places.Burst < 0 || c.Places.Concurrency < 0 {
		errs = append(errs, errors.New("places: rate, burst and concurrency must be non-negative"))
	}
	if c.Archive.Driver == "s3" && c.Archive.S3Bucket == "" {
		errs = append(errs, errors.New("archive.s3_bucket required for s3 driver"))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// NewLogger builds the process logger: JSON records on w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
