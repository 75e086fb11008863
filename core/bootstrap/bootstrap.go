// Package bootstrap brings up process infrastructure in a fixed order:
// logger, schema migrations, then the pooled database connection.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/ilyosbek9531/expense-tracker-bot/core/config"
	coredatabase "github.com/ilyosbek9531/expense-tracker-bot/core/database"
	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
)

// Options select what to bring up. The function fields are test seams and
// default to the real implementations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// Migrations holds the SQL files under coredatabase.MigrationsDir.
	// Nil skips the migrate step.
	Migrations fs.FS
	// SkipDatabase stops after logger init, for in-memory runs.
	SkipDatabase bool

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config, fs.FS) error
}

// Result holds what Run brought up. DB is nil when SkipDatabase was set.
type Result struct {
	DB *sqlx.DB
}

type step struct {
	name string
	// fail prefixes the returned error.
	fail string
	run  func(context.Context) error
}

// Run executes the steps in order and stops at the first failure.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.defaults()

	res := &Result{}
	steps := []step{{
		name: "logger", fail: "logger init failed",
		run: func(context.Context) error { return opts.LoggerInit(opts.Config) },
	}}
	if !opts.SkipDatabase {
		if opts.Migrations != nil {
			steps = append(steps, step{
				name: "migrate", fail: "migrations failed",
				run: func(ctx context.Context) error { return opts.Migrate(ctx, opts.Database, opts.Migrations) },
			})
		}
		steps = append(steps, step{
			name: "connect", fail: "database initialization failed",
			run: func(ctx context.Context) (err error) {
				res.DB, err = opts.Connect(ctx, opts.Database)
				return err
			},
		})
	}

	for _, s := range steps {
		start := time.Now()
		if err := s.run(ctx); err != nil {
			return nil, fmt.Errorf("bootstrap: %s: %w", s.fail, err)
		}
		// The logger step itself enables this line.
		logger.Debug(ctx, "app", "bootstrap.step",
			slog.String("step", s.name),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
	return res, nil
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
}
