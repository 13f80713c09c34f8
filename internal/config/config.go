// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMongoURI      = "mongodb://localhost:27017/boarding-house"
	DefaultMongoDatabase = "boarding-house"
	DefaultHTTPAddr      = ":8080"
)

type Config struct {
	Mongo struct {
		URI      string        `yaml:"uri"`
		Database string        `yaml:"database"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"mongo"`

	// Database is the Postgres audit store. Empty URL disables run history.
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	RabbitMQ struct {
		URL string `yaml:"url"`
	} `yaml:"rabbitmq"`

	Workers int `yaml:"workers"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Schedule struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"schedule"`
}

// LoadConfig reads path (if it exists), then applies defaults and environment
// overrides. A missing file is not an error: the maintenance run is usually
// launched with nothing but MONGODB_URI set.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Mongo.URI, "MONGODB_URI")
	set(&c.Mongo.Database, "MONGODB_DATABASE")
	set(&c.Database.URL, "DATABASE_URL")
	set(&c.RabbitMQ.URL, "RABBITMQ_URL")
	set(&c.Auth.JWTSecret, "JWT_SECRET")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Log.Format, "LOG_FORMAT")
	set(&c.HTTP.Addr, "HTTP_ADDR")
}

func (c *Config) applyDefaults() {
	if c.Mongo.URI == "" {
		c.Mongo.URI = DefaultMongoURI
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = databaseFromURI(c.Mongo.URI)
	}
	if c.Mongo.Timeout == 0 {
		c.Mongo.Timeout = 10 * time.Second
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("mongo.uri must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Schedule.Interval < 0 {
		return fmt.Errorf("schedule.interval must not be negative, got %s", c.Schedule.Interval)
	}
	return nil
}

// databaseFromURI returns the path component of a mongodb:// URI, which is
// where the boarding-house app keeps its database name.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return DefaultMongoDatabase
}
