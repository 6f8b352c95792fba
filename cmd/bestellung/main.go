package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/joao-fontenele/shopflow/internal/app"
	"github.com/joao-fontenele/shopflow/internal/bestellung"
	"github.com/joao-fontenele/shopflow/internal/cache"
	"github.com/joao-fontenele/shopflow/internal/config"
	"github.com/joao-fontenele/shopflow/internal/docstore"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/peer"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
	"github.com/joao-fontenele/shopflow/internal/validation"
	"github.com/joao-fontenele/shopflow/internal/web"
)

func main() {
	ctx, stop := web.NotifyContext(context.Background())
	defer stop()

	logger := config.NewLogger(slog.LevelInfo)

	cfg, err := config.LoadBestellung(ctx, logger)
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

	store, err := docstore.Connect(ctx, docstore.Options{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		PoolSize: cfg.Mongo.PoolSize,
		Monitor:  telemetry.MongoMonitor(),
	})
	if err != nil {
		logger.Error("failed to connect to mongo", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Disconnect(context.Background()) }()

	repo := bestellung.NewMongoRepository(store.Database())
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Error("failed to create indexes", "error", err)
		os.Exit(1)
	}

	validator, err := validation.New()
	if err != nil {
		logger.Error("failed to build validator", "error", err)
		os.Exit(1)
	}

	backend, err := app.Cache[domain.Bestellung](ctx, cfg.Redis, "bestellung:", logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	httpClient := peer.NewHTTPClient(peer.DefaultConnectTimeout, peer.DefaultReadTimeout)
	resolver := app.Resolver(cfg.Service, httpClient, logger)

	kundeClient := peer.NewClient[bestellung.KundeInfo](peer.HTTPConfig{
		App:        "kunde",
		PathPrefix: "/kunde",
		Username:   cfg.KundeUsername,
		Password:   cfg.KundePassword,
	}, resolver, httpClient)
	kunden := peer.NewResilient[bestellung.KundeInfo](kundeClient, peer.ResilienceConfig{
		Name:       "kunde",
		MaxRetries: 2,
		Timeout:    peer.DefaultReadTimeout,
	}, bestellung.KundeFallback, logger)

	svc := bestellung.NewService(repo, kunden, cache.NewAside(backend.Cache, "bestellung", logger), validator, logger)

	if cfg.Dev() {
		if _, err := bestellung.Seed(ctx, repo, logger); err != nil {
			logger.Error("failed to seed bestellungen", "error", err)
			os.Exit(1)
		}
	}

	mux := http.NewServeMux()
	bestellung.NewHandler(svc, logger).Register(mux)

	checks := map[string]web.Check{"mongo": store.Ping}
	if backend.Check != nil {
		checks["redis"] = backend.Check
	}
	app.Mount(mux, cfg.Service, metrics, checks, logger)

	app.Register(ctx, cfg.Service, httpClient, logger)

	server := web.NewServer(cfg.Server(), app.Handler(mux, cfg.Service, logger))
	if err := web.Run(server, cfg.Server(), logger, "bestellung service"); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
