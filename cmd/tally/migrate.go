package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kwestin/tally/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.
Migrations are applied automatically by other commands; this runs them
explicitly.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// openStore migrates as part of opening.
	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = store.Close() }()

	slog.Info("database schema up to date")
	fmt.Println(cli.FormatSuccess("Database migrations completed"))
	return nil
}
