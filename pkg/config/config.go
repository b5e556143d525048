// Package config loads the portal server settings from the environment,
// optionally seeded from a .env file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"navportal/pkg/settings"
	"navportal/pkg/storage"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port             string        `env:"PORT" envDefault:"8082"`
	APIURL           string        `env:"PORTAL_API_URL" envDefault:"https://putx.cn/api"`
	StorageDriver    string        `env:"PORTAL_STORAGE" envDefault:"memory"`
	RedisURL         string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	StorageKey       string        `env:"PORTAL_STORAGE_KEY"`
	CacheTTL         time.Duration `env:"PORTAL_CACHE_TTL" envDefault:"5m"`
	ValidateInterval time.Duration `env:"PORTAL_VALIDATE_INTERVAL" envDefault:"5m"`
	RedirectDelay    time.Duration `env:"PORTAL_REDIRECT_DELAY" envDefault:"2s"`
	RequestTimeout   time.Duration `env:"PORTAL_REQUEST_TIMEOUT" envDefault:"15s"`
	AllowOrigins     []string      `env:"PORTAL_ALLOW_ORIGINS" envSeparator:","`
	LoginRate        int           `env:"PORTAL_LOGIN_RATE" envDefault:"10"`
}

// LoadDotEnv reads path into the process environment. A missing file is not
// an error; variables already set win over the file.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads .env, parses the environment and validates the result.
func Load(dotenv string) (Config, error) {
	if err := LoadDotEnv(dotenv); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.APIURL = settings.Normalize(cfg.APIURL)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := settings.Validate(c.APIURL); err != nil {
		return fmt.Errorf("PORTAL_API_URL: %w", err)
	}
	switch c.StorageDriver {
	case storage.DriverMemory, storage.DriverRedis:
	case storage.DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("PORTAL_STORAGE: unknown driver %q", c.StorageDriver)
	}
	if c.StorageKey != "" {
		if _, err := c.SealKey(); err != nil {
			return err
		}
	}
	if c.CacheTTL <= 0 || c.ValidateInterval <= 0 || c.RequestTimeout <= 0 {
		return errors.New("durations must be positive")
	}
	if c.RedirectDelay < 0 {
		return errors.New("PORTAL_REDIRECT_DELAY must not be negative")
	}
	if c.LoginRate <= 0 {
		return errors.New("PORTAL_LOGIN_RATE must be positive")
	}
	return nil
}

// SealKey decodes StorageKey. It returns nil when no key is configured.
func (c Config) SealKey() ([]byte, error) {
	if c.StorageKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_STORAGE_KEY: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("PORTAL_STORAGE_KEY: want 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (c Config) Addr() string {
	return "0.0.0.0:" + c.Port
}

func (c Config) Origins() string {
	return strings.Join(c.AllowOrigins, ",")
}

func (c Config) StorageOptions() storage.Options {
	return storage.Options{Driver: c.StorageDriver, RedisURL: c.RedisURL, DatabaseURL: c.DatabaseURL}
}

func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Port:%s APIURL:%s Storage:%s RedisURL:%s DatabaseURL:%s StorageKey:%s CacheTTL:%s ValidateInterval:%s RedirectDelay:%s RequestTimeout:%s LoginRate:%d}",
		c.Port, c.APIURL, c.StorageDriver, mask(c.RedisURL), mask(c.DatabaseURL), mask(c.StorageKey),
		c.CacheTTL, c.ValidateInterval, c.RedirectDelay, c.RequestTimeout, c.LoginRate,
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
