package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joao-fontenele/shopflow/internal/config"
	"github.com/joao-fontenele/shopflow/internal/configserver"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
)

func migrateCmd(logger *slog.Logger) *cobra.Command {
	var postgresURL string

	cmd := &cobra.Command{
		Use:       "migrate <up|down|version>",
		Short:     "Manage the config server schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if postgresURL == "" {
				s, err := config.Load(cmd.Context(), "admin", logger)
				if err != nil {
					return err
				}
				postgresURL = s.Require("POSTGRES_URL")
				if err := s.Err(); err != nil {
					return err
				}
			}

			db, err := telemetry.OpenPostgres(postgresURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = db.Close() }()

			m, err := configserver.NewMigrator(db)
			if err != nil {
				return err
			}

			switch args[0] {
			case "up":
				err = m.Up()
				if errors.Is(err, configserver.ErrNoChange) {
					logger.Info("no pending migrations")
					return nil
				}
				if err != nil {
					return fmt.Errorf("migration up failed: %w", err)
				}
				logger.Info("migrations applied successfully")

			case "down":
				err = m.Down()
				if errors.Is(err, configserver.ErrNoChange) {
					logger.Info("no migrations to rollback")
					return nil
				}
				if err != nil {
					return fmt.Errorf("migration down failed: %w", err)
				}
				logger.Info("migration rolled back successfully")

			case "version":
				version, dirty, err := m.Version()
				if errors.Is(err, configserver.ErrNilVersion) {
					logger.Info("no migrations applied yet")
					return nil
				}
				if err != nil {
					return fmt.Errorf("failed to get version: %w", err)
				}
				logger.Info("current migration version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&postgresURL, "postgres-url", "", "database url, defaults to POSTGRES_URL")
	return cmd
}
