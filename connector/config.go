package connector

import (
	"fmt"
	"os"
	"time"

	"github.com/Konsultn-Engineering/dbpool/pool"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values loaded from a config file.
const (
	EnvHost     = "DBPOOL_HOST"
	EnvPassword = "DBPOOL_PASSWORD"
)

// Config represents database connection configuration.
type Config struct {
	Host           string            `json:"host" yaml:"host"`
	Port           int               `json:"port" yaml:"port"`
	Database       string            `json:"database" yaml:"database"`
	Username       string            `json:"username" yaml:"username"`
	Password       string            `json:"password" yaml:"password"`
	SSLMode        string            `json:"ssl_mode" yaml:"ssl_mode"`
	Params         map[string]string `json:"params" yaml:"params"`
	Pool           pool.Config       `json:"pool" yaml:"pool"`
	ConnectTimeout time.Duration     `json:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout   time.Duration     `json:"query_timeout" yaml:"query_timeout"`
	Retry          *RetryConfig      `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// RetryConfig defines connection retry behavior.
type RetryConfig struct {
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay" yaml:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay" yaml:"max_delay"`
	Backoff    float64       `json:"backoff" yaml:"backoff"`
}

// LoadConfig reads a YAML config file and applies environment overrides.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{Port: 5432, Pool: pool.DefaultConfig()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Password = v
	}
}

// Validate checks the connection settings and the pool bounds.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.ConnectTimeout < 0 || c.QueryTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if r := c.Retry; r != nil {
		if r.MaxRetries < 0 {
			return fmt.Errorf("invalid max_retries: %d", r.MaxRetries)
		}
		if r.Backoff != 0 && r.Backoff < 1 {
			return fmt.Errorf("invalid backoff: %g (must be >= 1)", r.Backoff)
		}
	}
	if err := c.Pool.WithDefaults().Validate(); err != nil {
		return err
	}
	return nil
}

// DSN builds the PostgreSQL connection string for this config.
func (c Config) DSN() string {
	return NewDSNBuilder("postgres").
		Auth(c.Username, c.Password).
		Host(c.Host, c.Port).
		Database(c.Database).
		Param("sslmode", c.SSLMode).
		Params(c.Params).
		Build()
}
