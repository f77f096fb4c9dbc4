package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Konsultn-Engineering/dbpool/cache"
	"github.com/Konsultn-Engineering/dbpool/pool"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const defaultStatementCacheSize = 128

// ErrUnsupportedBackend is returned when the pool hands out something other
// than a *pgx.Conn.
var ErrUnsupportedBackend = errors.New("pooled backend is not a *pgx.Conn")

// Option configures a PgxDatabase.
type Option func(*PgxDatabase)

// WithQueryTimeout bounds every statement. Zero means no extra bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(db *PgxDatabase) { db.queryTimeout = d }
}

// WithStatementCacheSize sets how many prepared statements are kept per
// connection.
func WithStatementCacheSize(n int) Option {
	return func(db *PgxDatabase) { db.statementCacheSize = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(db *PgxDatabase) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// PgxDatabase implements Database over a pool of *pgx.Conn.
type PgxDatabase struct {
	pool               *pool.Pool
	statements         *cache.Registry
	statementCacheSize int
	queryTimeout       time.Duration
	logger             *zap.Logger
}

// NewPgxDatabase creates a new PgxDatabase.
func NewPgxDatabase(p *pool.Pool, opts ...Option) *PgxDatabase {
	db := &PgxDatabase{
		pool:               p,
		statementCacheSize: defaultStatementCacheSize,
		logger:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	// Twice the pool size leaves room for replaced connections to age out.
	db.statements = cache.NewRegistry(2*p.Config().MaxConnections, db.statementCacheSize)
	return db
}

// WithConn acquires a connection, runs fn and hands the connection back.
// A connection that fn left closed is discarded rather than reused.
func (p *PgxDatabase) WithConn(ctx context.Context, fn func(ctx context.Context, conn *pgx.Conn) error) error {
	c, conn, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer p.release(c, conn)

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return fn(ctx, conn)
}

// Query executes a query that returns rows. The connection stays checked
// out until the returned Rows is closed.
func (p *PgxDatabase) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	c, conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := p.withTimeout(ctx)
	name, err := p.statements.For(c.ID()).Prepare(ctx, conn, query)
	if err != nil {
		cancel()
		p.release(c, conn)
		return nil, err
	}

	rows, err := conn.Query(ctx, name, args...)
	if err != nil {
		cancel()
		p.release(c, conn)
		return nil, err
	}
	return &PgxRows{
		rows: rows,
		done: func() {
			cancel()
			p.release(c, conn)
		},
	}, nil
}

// Exec executes a query without returning rows.
func (p *PgxDatabase) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	c, conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.release(c, conn)

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	name, err := p.statements.For(c.ID()).Prepare(ctx, conn, query)
	if err != nil {
		return nil, err
	}
	tag, err := conn.Exec(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	return &PgxResult{cmdTag: tag}, nil
}

// PingContext verifies a pooled connection is alive.
func (p *PgxDatabase) PingContext(ctx context.Context) error {
	return p.WithConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		return conn.Ping(ctx)
	})
}

func (p *PgxDatabase) acquire(ctx context.Context) (*pool.Conn, *pgx.Conn, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	conn, ok := c.Backend().(*pgx.Conn)
	if !ok {
		p.pool.Release(c)
		return nil, nil, fmt.Errorf("%w: got %T", ErrUnsupportedBackend, c.Backend())
	}
	return c, conn, nil
}

func (p *PgxDatabase) release(c *pool.Conn, conn *pgx.Conn) {
	if conn.IsClosed() {
		p.logger.Debug("discarding closed connection", zap.Uint64("conn_id", c.ID()))
		p.statements.Forget(c.ID())
		p.pool.Discard(c)
		return
	}
	p.pool.Release(c)
}

func (p *PgxDatabase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.queryTimeout > 0 {
		return context.WithTimeout(ctx, p.queryTimeout)
	}
	return ctx, func() {}
}

// PgxRows implements Rows for pgx.Rows.
type PgxRows struct {
	rows              pgx.Rows
	fieldDescriptions []pgconn.FieldDescription
	done              func()
	once              sync.Once
}

// Next prepares the next result row for reading.
func (p *PgxRows) Next() bool { return p.rows.Next() }

// Scan copies the columns from the current row into the provided destinations.
func (p *PgxRows) Scan(dest ...any) error { return p.rows.Scan(dest...) }

// Err returns any error hit while iterating.
func (p *PgxRows) Err() error { return p.rows.Err() }

// Close closes the rows iterator and returns the connection to the pool.
func (p *PgxRows) Close() error {
	p.rows.Close()
	p.once.Do(p.done)
	return p.rows.Err()
}

// Columns returns the column names.
func (p *PgxRows) Columns() ([]string, error) {
	if p.fieldDescriptions == nil {
		p.fieldDescriptions = p.rows.FieldDescriptions()
	}
	columns := make([]string, len(p.fieldDescriptions))
	for i, fd := range p.fieldDescriptions {
		columns[i] = fd.Name
	}
	return columns, nil
}

// Values returns the values for the current row.
func (p *PgxRows) Values() ([]any, error) {
	return p.rows.Values()
}

// PgxResult implements Result for pgx command tags.
type PgxResult struct {
	cmdTag pgconn.CommandTag
}

// RowsAffected returns the number of rows affected by the command.
func (r *PgxResult) RowsAffected() (int64, error) {
	return r.cmdTag.RowsAffected(), nil
}

// String returns the command tag, e.g. "UPDATE 3".
func (r *PgxResult) String() string {
	return r.cmdTag.String()
}

var _ Database = (*PgxDatabase)(nil)
