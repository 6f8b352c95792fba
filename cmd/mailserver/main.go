package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/emersion/go-smtp"

	"github.com/joao-fontenele/shopflow/internal/app"
	"github.com/joao-fontenele/shopflow/internal/config"
	"github.com/joao-fontenele/shopflow/internal/mailserver"
	"github.com/joao-fontenele/shopflow/internal/web"
)

func main() {
	ctx, stop := web.NotifyContext(context.Background())
	defer stop()

	logger := config.NewLogger(slog.LevelInfo)

	cfg, err := config.LoadMailserver(ctx, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger = config.NewLogger(cfg.LogLevel)

	metrics, shutdownTelemetry, err := app.Telemetry(ctx, cfg.Service, logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry()

	inbox, err := mailserver.OpenInbox(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open inbox", "error", err)
		os.Exit(1)
	}
	defer func() { _ = inbox.Close() }()

	smtpServer := mailserver.NewSMTPServer(cfg.SMTPAddr, cfg.Domain, mailserver.NewBackend(inbox, logger))
	go func() {
		logger.Info("starting smtp sink", "addr", cfg.SMTPAddr, "domain", cfg.Domain)
		if err := smtpServer.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			logger.Error("smtp server error", "error", err)
			os.Exit(1)
		}
	}()
	defer func() { _ = smtpServer.Close() }()

	mux := http.NewServeMux()
	mailserver.NewHandler(inbox, logger).Register(mux)
	checks := map[string]web.Check{"inbox": func(context.Context) error { return inbox.Ping() }}
	app.Mount(mux, cfg.Service, metrics, checks, logger)

	server := web.NewServer(cfg.Server(), app.Handler(mux, cfg.Service, logger))
	if err := web.Run(server, cfg.Server(), logger, "mailserver"); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
