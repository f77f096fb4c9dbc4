// Command dbpool opens a connection pool against PostgreSQL, runs a burst of
// concurrent probe queries through it and prints the pool stats and health.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Konsultn-Engineering/dbpool/connector"
	"github.com/Konsultn-Engineering/dbpool/database"
	"github.com/Konsultn-Engineering/dbpool/pool"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath string
	dsn        string
	probes     int
	query      string
	debug      bool
}

func main() {
	var opts options
	pflag.StringVarP(&opts.configPath, "config", "c", "dbpool.yaml", "path to the YAML config file")
	pflag.StringVar(&opts.dsn, "dsn", "", "connection string; overrides the config file's connection settings")
	pflag.IntVarP(&opts.probes, "probes", "n", 20, "number of concurrent probe queries")
	pflag.StringVarP(&opts.query, "query", "q", "SELECT 1", "probe query")
	pflag.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	pflag.Parse()

	logger, err := newLogger(opts.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, opts); err != nil {
		logger.Error("dbpool failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, logger *zap.Logger, opts options) error {
	id := uuid.New()
	appName := connector.WithApplicationName("dbpool-" + id.String())

	var (
		cfg    connector.Config
		dialer *connector.PostgresDialer
		err    error
	)
	if opts.dsn != "" {
		cfg = connector.Config{Pool: pool.DefaultConfig()}
		dialer, err = connector.NewPostgresDialerFromDSN(opts.dsn, appName)
	} else {
		cfg, err = connector.LoadConfig(opts.configPath)
		if err != nil {
			return err
		}
		dialer, err = connector.NewPostgresDialer(cfg, appName)
	}
	if err != nil {
		return err
	}

	p, err := pool.New(ctx, cfg.Pool, dialer, pool.WithID(id), pool.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), p.Config().CloseGracePeriod+time.Second)
		defer cancel()
		if err := p.Close(closeCtx); err != nil {
			logger.Warn("close pool", zap.Error(err))
		}
	}()

	db := database.NewPgxDatabase(p,
		database.WithQueryTimeout(cfg.QueryTimeout),
		database.WithLogger(logger))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.probes; i++ {
		g.Go(func() error {
			rows, err := db.Query(gctx, opts.query)
			if err != nil {
				return fmt.Errorf("probe %d: %w", i, err)
			}
			for rows.Next() {
			}
			return rows.Close()
		})
	}
	probeErr := g.Wait()
	logger.Info("probes finished",
		zap.Int("count", opts.probes),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(probeErr))

	report := struct {
		PoolID string      `json:"pool_id"`
		Stats  pool.Stats  `json:"stats"`
		Health pool.Health `json:"health"`
	}{
		PoolID: p.ID().String(),
		Stats:  p.Stats(),
		Health: p.HealthCheck(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	return probeErr
}
