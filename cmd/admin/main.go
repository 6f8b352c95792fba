package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joao-fontenele/shopflow/internal/config"
)

func main() {
	logger := config.NewLogger(slog.LevelInfo)

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Operator tasks for the shopflow services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		migrateCmd(logger),
		seedCmd(logger),
		hashPasswordCmd(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
