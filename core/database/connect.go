package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
)

const (
	pingTimeout  = 5 * time.Second
	waitInterval = 2 * time.Second
	connIdleTime = 5 * time.Minute
)

// Connect opens a pool sized from cfg and pings it once.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	start := time.Now()
	db, err := open(ctx, cfg)
	took := logger.RoundMS(time.Since(start))
	if err != nil {
		logger.Error(ctx, "db", "db.connect", append(cfg.attrs(),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)...)
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxIdleTime(connIdleTime)

	logger.Info(ctx, "db", "db.connect", append(cfg.attrs(),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", took),
	)...)
	return db, nil
}

func open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// WaitForDatabase pings until the server answers, timeout passes or ctx
// ends. SQLite is a local file and returns at once.
func WaitForDatabase(ctx context.Context, cfg Config, timeout time.Duration) error {
	if cfg.Driver == DriverSQLite {
		return nil
	}
	deadline := time.Now().Add(timeout)
	tick := time.NewTicker(waitInterval)
	defer tick.Stop()

	for attempt := 1; ; attempt++ {
		db, err := open(ctx, cfg)
		if err == nil {
			return db.Close()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not ready after %s: %w", timeout, err)
		}
		logger.Debug(ctx, "db", "db.wait",
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}
