package connector

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Konsultn-Engineering/dbpool/pool"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgresDialer(t *testing.T) {
	d, err := NewPostgresDialer(Config{
		Host:           "localhost",
		Port:           5432,
		Database:       "dbpool_test",
		Username:       "postgres",
		SSLMode:        "disable",
		ConnectTimeout: 2 * time.Second,
		Retry:          &RetryConfig{MaxRetries: 1},
	}, WithApplicationName("dbpool-test"))
	require.NoError(t, err)

	assert.Equal(t, "localhost", d.connConfig.Host)
	assert.EqualValues(t, 5432, d.connConfig.Port)
	assert.Equal(t, "dbpool_test", d.connConfig.Database)
	assert.Equal(t, 2*time.Second, d.connConfig.ConnectTimeout)
	assert.Equal(t, "dbpool-test", d.connConfig.RuntimeParams["application_name"])
	require.NotNil(t, d.retry)
	assert.Equal(t, 1, d.retry.MaxRetries)
}

func TestNewPostgresDialerRejectsInvalidConfig(t *testing.T) {
	_, err := NewPostgresDialer(Config{Port: 5432})
	assert.Error(t, err)

	_, err = NewPostgresDialerFromDSN("postgres://localhost:notaport")
	assert.Error(t, err)
}

func TestPostgresDialerLive(t *testing.T) {
	dsn := os.Getenv("DBPOOL_TEST_DATABASE")
	if dsn == "" {
		t.Skip("DBPOOL_TEST_DATABASE not set")
	}

	d, err := NewPostgresDialerFromDSN(dsn, WithApplicationName("dbpool-live-test"))
	require.NoError(t, err)

	ctx := context.Background()
	p, err := pool.New(ctx, pool.Config{MaxConnections: 2, MinConnections: 1}, d)
	require.NoError(t, err)
	defer p.Close(ctx)

	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer p.Release(c)

	conn, ok := c.Backend().(*pgx.Conn)
	require.True(t, ok)

	var name string
	require.NoError(t, conn.QueryRow(ctx, "SELECT current_setting('application_name')").Scan(&name))
	assert.Equal(t, "dbpool-live-test", name)
}
