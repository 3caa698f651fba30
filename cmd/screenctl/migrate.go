package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"screening-agent/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := load()
		if err != nil {
			return err
		}
		if !cfg.DBEnabled() {
			return errors.New("DATABASE_URL or DB_HOST must be set")
		}
		db, err := storage.Open(cmd.Context(), cfg.PostgresDSN())
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := storage.New(db).Migrate(cmd.Context())
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied", "versions", applied)
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
