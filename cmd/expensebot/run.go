package main

import (
	"context"

	"github.com/spf13/cobra"

	corecmd "github.com/ilyosbek9531/expense-tracker-bot/core/cmd"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/config"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var memory bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath:        flags.configPath,
				ConfigEnvVar:      configEnvVar,
				DefaultConfigPath: defaultConfigPath,
				LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
					return config.Load(path, memory)
				},
				Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
					return newApp(ctx, cfg.(*config.Config), memory)
				},
			})
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "keep all data in memory instead of the configured database")
	return cmd
}
