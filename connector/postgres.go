package connector

import (
	"context"
	"fmt"

	"github.com/Konsultn-Engineering/dbpool/pool"
	"github.com/jackc/pgx/v5"
)

// DialerOption configures a PostgresDialer.
type DialerOption func(*PostgresDialer)

// WithApplicationName reports name as application_name to the server, which
// makes pooled sessions easy to find in pg_stat_activity.
func WithApplicationName(name string) DialerOption {
	return func(d *PostgresDialer) {
		d.connConfig.RuntimeParams["application_name"] = name
	}
}

// WithRetry retries failed dials with backoff.
func WithRetry(cfg RetryConfig) DialerOption {
	return func(d *PostgresDialer) { d.retry = &cfg }
}

// PostgresDialer opens single pgx connections for the pool.
type PostgresDialer struct {
	connConfig *pgx.ConnConfig
	retry      *RetryConfig
}

// NewPostgresDialer creates a dialer from a validated Config.
func NewPostgresDialer(cfg Config, opts ...DialerOption) (*PostgresDialer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, err := NewPostgresDialerFromDSN(cfg.DSN(), opts...)
	if err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout > 0 {
		d.connConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if d.retry == nil && cfg.Retry != nil {
		r := *cfg.Retry
		d.retry = &r
	}
	return d, nil
}

// NewPostgresDialerFromDSN creates a dialer from a connection string in any
// format pgx understands.
func NewPostgresDialerFromDSN(dsn string, opts ...DialerOption) (*PostgresDialer, error) {
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	d := &PostgresDialer{connConfig: connConfig}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dial implements pool.Dialer.
func (d *PostgresDialer) Dial(ctx context.Context) (pool.Backend, error) {
	if d.retry != nil {
		return retry(ctx, *d.retry, d.connect)
	}
	return d.connect(ctx)
}

func (d *PostgresDialer) connect(ctx context.Context) (pool.Backend, error) {
	conn, err := pgx.ConnectConfig(ctx, d.connConfig)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

var _ pool.Dialer = (*PostgresDialer)(nil)
