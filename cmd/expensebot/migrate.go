package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ilyosbek9531/expense-tracker-bot/core/database"
	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/store/sqlstore"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Long:  "Apply pending database migrations and exit. With --down N the last N migrations are reverted instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(false)
			if err != nil {
				return err
			}
			if err := logger.InitLogger(&cfg.Config); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()

			if down > 0 {
				err = database.RollbackMigrations(cmd.Context(), cfg.Database, sqlstore.Migrations, down)
			} else {
				err = database.RunMigrations(cmd.Context(), cfg.Database, sqlstore.Migrations)
			}
			if err != nil {
				return err
			}
			logger.Info(cmd.Context(), "db.migrate", "migrate.done",
				slog.String("driver", cfg.Database.Driver),
				slog.Int("down", down),
			)
			return nil
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "revert this many migrations instead of applying")
	return cmd
}
