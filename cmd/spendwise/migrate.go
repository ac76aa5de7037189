package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/store/sqlite"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cli.LoadAndValidateConfig(cfgFile)
			if err != nil {
				return err
			}
			if cfg.Backend != config.BackendSQLite {
				return fmt.Errorf("migrate needs the sqlite backend, configured backend is %q", cfg.Backend)
			}
			logger, err := cli.SetupLogger(cfg)
			if err != nil {
				return err
			}

			if err := sqlite.RunMigrations(cfg.SQLiteDBPath); err != nil {
				return err
			}
			version, dirty, err := sqlite.SchemaVersion(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			logger.Info("Migrations applied", "db_path", cfg.SQLiteDBPath, "version", version, "dirty", dirty)
			return nil
		},
	}
}
