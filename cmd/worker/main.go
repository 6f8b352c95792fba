package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joao-fontenele/shopflow/internal/config"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/mail"
	"github.com/joao-fontenele/shopflow/internal/messaging"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
	"github.com/joao-fontenele/shopflow/internal/web"
	"github.com/joao-fontenele/shopflow/internal/worker"
)

func main() {
	ctx, cancel := web.NotifyContext(context.Background())
	defer cancel()

	logger := config.NewLogger(slog.LevelInfo)

	cfg, err := config.LoadWorker(ctx, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger = config.NewLogger(cfg.LogLevel)

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, domain.TopicKundeCreated, cfg.GroupID)
	defer func() { _ = consumer.Close() }()

	handler := worker.NewWelcomeHandler(mail.NewSender(cfg.Mail), logger)

	logger.Info("starting mail worker", "brokers", cfg.KafkaBrokers, "topic", domain.TopicKundeCreated, "smtp", cfg.Mail.Host)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
	logger.Info("consumer stopped")
}
