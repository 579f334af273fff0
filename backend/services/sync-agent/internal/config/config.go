package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	libconfig "evsync/backend/libs/config"
)

// Cache drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// HTTP is the local agent listener.
type HTTP struct {
	Port string `yaml:"port" env:"SYNC_AGENT_HTTP_PORT"`
}

// Remote points at the booking service.
type Remote struct {
	BaseURL        string `yaml:"baseUrl" env:"BOOKING_SERVICE_URL"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" env:"BOOKING_SERVICE_TIMEOUT"`
	Token          string `yaml:"token" env:"BOOKING_SERVICE_TOKEN"`
}

// Cache selects and configures the durable cache backend.
type Cache struct {
	Driver string `yaml:"driver" env:"SYNC_AGENT_CACHE_DRIVER"`
	SQLite struct {
		Path string `yaml:"path" env:"SYNC_AGENT_SQLITE_PATH"`
	} `yaml:"sqlite"`
	Postgres struct {
		DSN string `yaml:"dsn" env:"SYNC_AGENT_POSTGRES_DSN"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr" env:"SYNC_AGENT_REDIS_ADDR"`
		Password string `yaml:"password" env:"SYNC_AGENT_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"SYNC_AGENT_REDIS_DB"`
		Prefix   string `yaml:"prefix" env:"SYNC_AGENT_REDIS_PREFIX"`
	} `yaml:"redis"`
}

// Log configures the zap logger.
type Log struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`
	Encoding string `yaml:"encoding" env:"LOG_ENCODING"`
}

// Config defines sync agent configuration.
type Config struct {
	HTTP   HTTP   `yaml:"http"`
	Remote Remote `yaml:"remote"`
	Cache  Cache  `yaml:"cache"`
	JWT    struct {
		Secret string `yaml:"secret" env:"SYNC_AGENT_JWT_SECRET"`
	} `yaml:"jwt"`
	TimeZone string `yaml:"timeZone" env:"SYNC_AGENT_TIME_ZONE"`
	Log      Log    `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{
		HTTP:     HTTP{Port: "8090"},
		Remote:   Remote{TimeoutSeconds: 10},
		TimeZone: "Asia/Colombo",
		Log:      Log{Encoding: "json"},
	}
	cfg.Cache.Driver = DriverSQLite
	cfg.Cache.SQLite.Path = "data/evsync.db"
	cfg.Cache.Redis.Prefix = "evsync"
	return cfg
}

// Load configuration via shared helper. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required and driver specific settings.
func (c *Config) Validate() error {
	base := strings.TrimSpace(c.Remote.BaseURL)
	if base == "" {
		return errors.New("config: booking service url required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid booking service url %q", base)
	}

	c.Cache.Driver = strings.ToLower(strings.TrimSpace(c.Cache.Driver))
	switch c.Cache.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Cache.SQLite.Path) == "" {
			return errors.New("config: sqlite path required")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Cache.Postgres.DSN) == "" {
			return errors.New("config: postgres dsn required")
		}
	case DriverRedis:
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return errors.New("config: redis addr required")
		}
	default:
		return fmt.Errorf("config: unknown cache driver %q", c.Cache.Driver)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8090"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// RemoteTimeout returns the booking service client timeout.
func (c *Config) RemoteTimeout() time.Duration {
	if c.Remote.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// Location resolves the display time zone; empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.TimeZone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: time zone %q: %w", name, err)
	}
	return loc, nil
}
