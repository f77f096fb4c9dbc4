package database

import (
	"context"
)

// Database runs statements on connections borrowed from a pool.
type Database interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	PingContext(ctx context.Context) error
}

// Rows is a result set. Close must be called to hand the connection back.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Columns() ([]string, error)
	Err() error
}

// Result summarizes an executed statement.
type Result interface {
	RowsAffected() (int64, error)
}
