package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cashboxes/internal/cli"
	"cashboxes/internal/config"
	applog "cashboxes/internal/log"
	"cashboxes/internal/storage"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := sqliteConfig()
				if err != nil {
					return err
				}
				if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
					return err
				}
				return printVersion(cmd, cfg.SQLiteDBPath)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Revert migrations (one step by default)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("invalid steps %q: %w", args[0], err)
					}
					steps = n
				}
				cfg, err := sqliteConfig()
				if err != nil {
					return err
				}
				if err := storage.RollbackMigrations(cfg.SQLiteDBPath, steps); err != nil {
					return err
				}
				return printVersion(cmd, cfg.SQLiteDBPath)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := sqliteConfig()
				if err != nil {
					return err
				}
				return printVersion(cmd, cfg.SQLiteDBPath)
			},
		},
	)
	return cmd
}

func sqliteConfig() (*config.Config, error) {
	cfg, err := cli.LoadConfig(false)
	if err != nil {
		return nil, err
	}
	if cfg.DataBackend != config.BackendSQLite {
		return nil, fmt.Errorf("migrations need DATA_BACKEND=%s, got %q", config.BackendSQLite, cfg.DataBackend)
	}
	cli.SetupLogger(cfg, applog.ComponentStorage)
	return cfg, nil
}

func printVersion(cmd *cobra.Command, dbPath string) error {
	version, dirty, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
