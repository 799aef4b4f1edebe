package commands

import (
	"fmt"

	"github.com/benvon/drinks-api/internal/config"
	"github.com/benvon/drinks-api/internal/database"
	"github.com/benvon/drinks-api/internal/logger"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the schema migration command
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := config.DatabaseURL()
			if err != nil {
				return err
			}
			log, err := logger.NewDevelopmentLogger(false)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync(log) }()

			if err := database.Migrate(url, log); err != nil {
				return err
			}
			return printMigrationStatus(cmd, url)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := config.DatabaseURL()
			if err != nil {
				return err
			}
			return printMigrationStatus(cmd, url)
		},
	})
	return cmd
}

func printMigrationStatus(cmd *cobra.Command, url string) error {
	status, err := database.CurrentMigration(url)
	if err != nil {
		return err
	}
	available, err := database.Migrations()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Schema version: %d\n", status.Version)
	if status.Dirty {
		fmt.Fprintln(out, "State: dirty (a migration failed part way; fix it by hand)")
	}
	fmt.Fprintf(out, "Embedded migrations: %d\n", len(available))
	for _, name := range available {
		fmt.Fprintf(out, "  - %s\n", name)
	}
	return nil
}
