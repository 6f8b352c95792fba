package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joao-fontenele/shopflow/internal/app"
	"github.com/joao-fontenele/shopflow/internal/auth"
	"github.com/joao-fontenele/shopflow/internal/cache"
	"github.com/joao-fontenele/shopflow/internal/config"
	"github.com/joao-fontenele/shopflow/internal/docstore"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/kunde"
	"github.com/joao-fontenele/shopflow/internal/messaging"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
	"github.com/joao-fontenele/shopflow/internal/validation"
	"github.com/joao-fontenele/shopflow/internal/web"
)

const realm = "KUNDE"

func main() {
	ctx, stop := web.NotifyContext(context.Background())
	defer stop()

	logger := config.NewLogger(slog.LevelInfo)

	cfg, err := config.LoadKunde(ctx, logger)
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

	repo := kunde.NewMongoRepository(store.Database())
	accountStore := auth.NewMongoAccountStore(store.Database())
	for name, ensure := range map[string]func(context.Context) error{
		"kunde":   repo.EnsureIndexes,
		"account": accountStore.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			logger.Error("failed to create indexes", "collection", name, "error", err)
			os.Exit(1)
		}
	}

	media, err := kunde.NewGridFSMediaStore(store.Database())
	if err != nil {
		logger.Error("failed to open media bucket", "error", err)
		os.Exit(1)
	}

	validator, err := validation.New()
	if err != nil {
		logger.Error("failed to build validator", "error", err)
		os.Exit(1)
	}

	backend, err := app.Cache[domain.Kunde](ctx, cfg.Redis, "kunde:", logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	var publisher messaging.Publisher = messaging.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, domain.TopicKundeCreated)
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, kunde events are dropped")
	}

	accounts := auth.NewService(accountStore, logger)
	svc := kunde.NewService(
		repo,
		media,
		accounts,
		cache.NewAside(backend.Cache, "kunde", logger),
		validator,
		publisher,
		logger,
	)

	if cfg.Dev() {
		if _, err := kunde.Seed(ctx, repo, accounts, logger); err != nil {
			logger.Error("failed to seed kunden", "error", err)
			os.Exit(1)
		}
		kunde.LogAll(ctx, svc, logger)
	}

	guard := auth.NewGuard(accounts, realm, logger)

	mux := http.NewServeMux()
	kunde.NewHandler(svc, guard, logger).Register(mux)

	checks := map[string]web.Check{"mongo": store.Ping}
	if backend.Check != nil {
		checks["redis"] = backend.Check
	}
	app.Mount(mux, cfg.Service, metrics, checks, logger)

	httpClient := &http.Client{Timeout: 10 * time.Second, Transport: telemetry.NewTransport(http.DefaultTransport)}
	app.Register(ctx, cfg.Service, httpClient, logger)

	server := web.NewServer(cfg.Server(), app.Handler(mux, cfg.Service, logger))
	if err := web.Run(server, cfg.Server(), logger, "kunde service"); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
