package pool

import (
	"fmt"
	"time"
)

const (
	DefaultMaxConnections           = 10
	DefaultMinConnections           = 2
	DefaultIdleTimeout              = 30 * time.Second
	DefaultAcquireTimeout           = 5 * time.Second
	DefaultReapInterval             = 10 * time.Second
	DefaultCloseGracePeriod         = 5 * time.Second
	DefaultDegradedTimeoutThreshold = 10
)

// Config defines connection pool settings.
type Config struct {
	MaxConnections   int           `json:"max_connections" yaml:"max_connections"`
	MinConnections   int           `json:"min_connections" yaml:"min_connections"`
	IdleTimeout      time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	AcquireTimeout   time.Duration `json:"acquire_timeout" yaml:"acquire_timeout"`
	ReapInterval     time.Duration `json:"reap_interval" yaml:"reap_interval"`
	CloseGracePeriod time.Duration `json:"close_grace_period" yaml:"close_grace_period"`
	// MaxWaiters caps the wait queue. Zero leaves it unbounded.
	MaxWaiters int `json:"max_waiters" yaml:"max_waiters"`
	// DegradedTimeoutThreshold is the number of acquire timeouts after which
	// HealthCheck reports StatusDegraded.
	DegradedTimeoutThreshold uint64 `json:"degraded_timeout_threshold" yaml:"degraded_timeout_threshold"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnections:           DefaultMaxConnections,
		MinConnections:           DefaultMinConnections,
		IdleTimeout:              DefaultIdleTimeout,
		AcquireTimeout:           DefaultAcquireTimeout,
		ReapInterval:             DefaultReapInterval,
		CloseGracePeriod:         DefaultCloseGracePeriod,
		DegradedTimeoutThreshold: DefaultDegradedTimeoutThreshold,
	}
}

// WithDefaults returns a copy with zero-valued fields set to the defaults.
// MinConnections and MaxWaiters keep their zero value since zero is
// meaningful for both.
func (c Config) WithDefaults() Config {
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.ReapInterval == 0 {
		c.ReapInterval = DefaultReapInterval
	}
	if c.CloseGracePeriod == 0 {
		c.CloseGracePeriod = DefaultCloseGracePeriod
	}
	if c.DegradedTimeoutThreshold == 0 {
		c.DegradedTimeoutThreshold = DefaultDegradedTimeoutThreshold
	}
	return c
}

// Validate checks the pool bounds.
func (c Config) Validate() error {
	if c.MaxConnections <= 0 {
		return fmt.Errorf("%w: max_connections must be positive, got %d", ErrInvalidConfig, c.MaxConnections)
	}
	if c.MinConnections < 0 || c.MinConnections > c.MaxConnections {
		return fmt.Errorf("%w: min_connections must be within [0, %d], got %d", ErrInvalidConfig, c.MaxConnections, c.MinConnections)
	}
	if c.IdleTimeout < 0 || c.AcquireTimeout < 0 || c.ReapInterval < 0 || c.CloseGracePeriod < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if c.MaxWaiters < 0 {
		return fmt.Errorf("%w: max_waiters must not be negative, got %d", ErrInvalidConfig, c.MaxWaiters)
	}
	return nil
}
