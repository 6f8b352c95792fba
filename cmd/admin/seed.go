package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joao-fontenele/shopflow/internal/auth"
	"github.com/joao-fontenele/shopflow/internal/bestellung"
	"github.com/joao-fontenele/shopflow/internal/config"
	"github.com/joao-fontenele/shopflow/internal/docstore"
	"github.com/joao-fontenele/shopflow/internal/kunde"
)

func seedCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the sample kunden, accounts and bestellungen into empty collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := config.Load(ctx, "admin", logger)
			if err != nil {
				return err
			}
			uri := s.String("MONGO_URI", "mongodb://localhost:27017")
			kundeDB := s.String("KUNDE_DATABASE", "kunde")
			bestellungDB := s.String("BESTELLUNG_DATABASE", "bestellung")
			if err := s.Err(); err != nil {
				return err
			}

			store, err := docstore.Connect(ctx, docstore.Options{URI: uri, Database: kundeDB})
			if err != nil {
				return err
			}
			defer func() { _ = store.Disconnect(ctx) }()

			repo := kunde.NewMongoRepository(store.Database())
			accountStore := auth.NewMongoAccountStore(store.Database())
			if err := repo.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("kunde indexes: %w", err)
			}
			if err := accountStore.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("account indexes: %w", err)
			}
			kunden, err := kunde.Seed(ctx, repo, auth.NewService(accountStore, logger), logger)
			if err != nil {
				return err
			}

			orders := bestellung.NewMongoRepository(store.Named(bestellungDB))
			if err := orders.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("bestellung indexes: %w", err)
			}
			bestellungen, err := bestellung.Seed(ctx, orders, logger)
			if err != nil {
				return err
			}

			logger.Info("seed finished", "kunden", kunden, "bestellungen", bestellungen)
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
