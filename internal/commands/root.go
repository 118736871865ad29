// Package commands wires the cashboxes CLI: the web server, the export
// worker, migrations and the administrative commands.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cashboxes/internal/backend"
	"cashboxes/internal/cli"
	"cashboxes/internal/config"
	applog "cashboxes/internal/log"
	"cashboxes/internal/ports"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// nowFunc supplies today's date to commands that default to it.
var nowFunc = time.Now

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:     "cashboxes",
		Short:   "Shared cash boxes and reimbursement claims",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envFile != "" {
				cli.LoadEnvFile(envFile)
			} else {
				cli.LoadEnvFile()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment from this file instead of .env")

	rootCmd.AddCommand(
		newServeCommand(),
		newWorkerCommand(),
		newMigrateCommand(),
		newCashBoxCommand(),
		newUserCommand(),
		newBalanceCommand(),
	)

	return rootCmd
}

// app is the configuration, logger and store shared by one command run.
type app struct {
	cfg    *config.Config
	logger *applog.Logger
	store  ports.Store
}

func openApp(ctx context.Context, component string, worker bool) (*app, error) {
	cfg, err := cli.LoadConfig(worker)
	if err != nil {
		return nil, err
	}
	logger := cli.SetupLogger(cfg, component)

	store, err := backend.NewFactory(logger).CreateStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &app{cfg: cfg, logger: logger, store: store}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close store", applog.FieldError, err)
	}
}
