package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
)

// MigrationsDir is the directory inside the migrations fs.FS holding the SQL files.
const MigrationsDir = "migrations"

const (
	readyTimeout = 30 * time.Second
	previewLimit = 6
)

// RunMigrations applies every pending up migration from fsys.
func RunMigrations(ctx context.Context, cfg Config, fsys fs.FS) error {
	return migrateWith(ctx, cfg, fsys, "up", func(m *migrate.Migrate) error { return m.Up() })
}

// RollbackMigrations reverts the last steps migrations.
func RollbackMigrations(ctx context.Context, cfg Config, fsys fs.FS, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("rollback: steps must be positive, got %d", steps)
	}
	return migrateWith(ctx, cfg, fsys, "down", func(m *migrate.Migrate) error { return m.Steps(-steps) })
}

// migrateWith runs apply on a dedicated connection closed before returning.
func migrateWith(ctx context.Context, cfg Config, fsys fs.FS, direction string, apply func(*migrate.Migrate) error) error {
	if err := WaitForDatabase(ctx, cfg, readyTimeout); err != nil {
		logger.Error(ctx, "db.migrate", "db.migrate", slog.String("err", err.Error()))
		return err
	}

	files := upFiles(fsys)
	logger.Debug(ctx, "db.migrate", "resolve", append(previewAttrs(files),
		slog.String("driver", cfg.Driver),
		slog.String("direction", direction),
	)...)

	m, err := newMigrator(ctx, cfg, fsys)
	if err != nil {
		logger.Error(ctx, "db.migrate", "db.migrate", slog.String("err", err.Error()))
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn(ctx, "db.migrate", "close", slog.String("err", errors.Join(srcErr, dbErr).Error()))
		}
	}()

	from := version(m)
	start := time.Now()
	err = apply(m)
	took := logger.RoundMS(time.Since(start))
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, "db.migrate", "apply",
			slog.String("direction", direction),
			slog.Uint64("from_ver", from),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("migrate %s: %w", direction, err)
	}

	to := version(m)
	touched := between(files, from, to)
	if len(touched) > 0 {
		logger.Debug(ctx, "db.migrate", "apply", previewAttrs(touched)...)
	}
	logger.Info(ctx, "db.migrate", "summary",
		slog.String("direction", direction),
		slog.Uint64("from_ver", from),
		slog.Uint64("to_ver", to),
		slog.Int("files", len(touched)),
		slog.Duration("duration", took),
	)
	return nil
}

func newMigrator(ctx context.Context, cfg Config, fsys fs.FS) (*migrate.Migrate, error) {
	src, err := iofs.New(fsys, MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	db, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var driver migratedb.Driver
	if cfg.Driver == DriverSQLite {
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	} else {
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, cfg.Driver, driver)
}

// version reports 0 for a fresh schema.
func version(m *migrate.Migrate) uint64 {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return uint64(v)
}

// upFiles lists the *.up.sql names, sorted.
func upFiles(fsys fs.FS) []string {
	matches, err := fs.Glob(fsys, MigrationsDir+"/*.up.sql")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, strings.TrimPrefix(p, MigrationsDir+"/"))
	}
	sort.Strings(names)
	return names
}

// between returns the files whose version lies in (min(a,b), max(a,b)],
// which covers both directions.
func between(files []string, a, b uint64) []string {
	lo, hi := min(a, b), max(a, b)
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && v > lo && v <= hi {
			out = append(out, f)
		}
	}
	return out
}

func previewAttrs(names []string) []slog.Attr {
	preview, truncated := logger.SummarizeStrings(names, previewLimit)
	attrs := []slog.Attr{slog.Int("files_total", len(names))}
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}
