package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the application configuration
type Config struct {
	Port  string `env:"PORT" envDefault:"8090"`
	Debug bool   `env:"DEBUG" envDefault:"false"`

	// HTTP guards the local endpoints against request floods per client IP
	HTTP struct {
		RateWindow time.Duration `env:"HTTP_RATE_WINDOW" envDefault:"1m"`
		RateMax    int           `env:"HTTP_RATE_MAX" envDefault:"60"`
	}

	API struct {
		BaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:5000/api"`
		Timeout time.Duration `env:"API_TIMEOUT" envDefault:"15s"`
	}

	Session struct {
		RefreshSkew      time.Duration `env:"TOKEN_REFRESH_SKEW" envDefault:"1m"`
		CheckInterval    time.Duration `env:"TOKEN_CHECK_INTERVAL" envDefault:"30s"`
		LoginInterval    time.Duration `env:"LOGIN_MIN_INTERVAL" envDefault:"5s"`
		RegisterInterval time.Duration `env:"REGISTER_MIN_INTERVAL" envDefault:"30s"`
		LogoutInterval   time.Duration `env:"LOGOUT_MIN_INTERVAL" envDefault:"5s"`
	}

	Storage struct {
		Driver      string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
		SQLitePath  string `env:"SQLITE_PATH" envDefault:"var/session.db"`
		DatabaseURL string `env:"DATABASE_URL"`
	}

	Redis struct {
		Addr      string `env:"REDIS_ADDR"`
		Password  string `env:"REDIS_PASSWORD"`
		DB        int    `env:"REDIS_DB" envDefault:"0"`
		KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"sessiond:"`
	}
}

// Load reads configuration from environment variables. Callers load .env
// files beforehand; real environment variables win.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.API.BaseURL)
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite storage driver")
		}
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required for the postgres storage driver")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR environment variable is required for the redis storage driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q (want sqlite, postgres, redis or memory)", c.Storage.Driver)
	}

	if c.Session.LoginInterval < 0 || c.Session.RegisterInterval < 0 || c.Session.LogoutInterval < 0 {
		return fmt.Errorf("rate-limit intervals must not be negative")
	}
	if c.Session.CheckInterval <= 0 {
		return fmt.Errorf("TOKEN_CHECK_INTERVAL must be positive")
	}
	if c.HTTP.RateWindow <= 0 || c.HTTP.RateMax <= 0 {
		return fmt.Errorf("HTTP_RATE_WINDOW and HTTP_RATE_MAX must be positive")
	}
	return nil
}
