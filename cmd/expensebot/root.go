package main

import (
	"github.com/spf13/cobra"

	"github.com/ilyosbek9531/expense-tracker-bot/core/buildinfo"
	corecmd "github.com/ilyosbek9531/expense-tracker-bot/core/cmd"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/config"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "expensebot",
		Short:         "Expense-sharing Telegram bot",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"path to the YAML config (default $"+configEnvVar+" or "+defaultConfigPath+")")

	root.AddCommand(
		newRunCmd(flags),
		newMigrateCmd(flags),
		newUserCmd(flags),
	)
	return root
}

func (f *rootFlags) path() string {
	return corecmd.ResolveConfigPath(f.configPath, configEnvVar, defaultConfigPath)
}

func (f *rootFlags) load(memory bool) (*config.Config, error) {
	return config.Load(f.path(), memory)
}
