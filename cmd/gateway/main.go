package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joao-fontenele/shopflow/internal/app"
	"github.com/joao-fontenele/shopflow/internal/config"
	"github.com/joao-fontenele/shopflow/internal/gateway"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
	"github.com/joao-fontenele/shopflow/internal/web"
)

func main() {
	ctx, stop := web.NotifyContext(context.Background())
	defer stop()

	logger := config.NewLogger(slog.LevelInfo)

	cfg, err := config.LoadGateway(ctx, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger = config.NewLogger(cfg.LogLevel)

	routes, err := gateway.ParseRoutes(cfg.Routes)
	if err != nil {
		logger.Error("invalid GATEWAY_ROUTES", "error", err)
		os.Exit(1)
	}

	metrics, shutdownTelemetry, err := app.Telemetry(ctx, cfg.Service, logger)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry()

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: telemetry.NewTransport(http.DefaultTransport),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resolver := app.Resolver(cfg.Service, httpClient, logger)
	handler := gateway.NewHandler(routes, gateway.NewServiceProxy(resolver, httpClient), logger)
	for _, rt := range handler.Routes() {
		logger.Info("route", "prefix", rt.Prefix, "service", rt.Service, "strip", rt.StripPrefix)
	}

	mux := http.NewServeMux()
	app.Mount(mux, cfg.Service, metrics, nil, logger)
	mux.Handle("/", handler)

	app.Register(ctx, cfg.Service, httpClient, logger)

	server := web.NewServer(cfg.Server(), app.Handler(mux, cfg.Service, logger))
	if err := web.Run(server, cfg.Server(), logger, "gateway"); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
