package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adomirror/adomirror/pkg/db"
)

func newMigrateCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			gormDB, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close(gormDB)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := db.Migrate(ctx, gormDB, logger); err != nil {
				return err
			}
			if gormDB.Dialector.Name() == "postgres" {
				version, dirty, err := db.MigrationVersion(gormDB)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (dirty=%t)\n", version, dirty)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
	f := cmd.Flags()
	f.String("db-type", "postgres", "Database type (postgres, mysql or sqlite)")
	f.String("db-dsn", "", "Database connection string")
	f.DurationVar(&timeout, "timeout", 5*time.Minute, "Give up waiting for the migration lock after this long")
	return cmd
}
