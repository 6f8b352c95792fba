package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/joao-fontenele/shopflow/internal/app"
	"github.com/joao-fontenele/shopflow/internal/auth"
	"github.com/joao-fontenele/shopflow/internal/config"
	"github.com/joao-fontenele/shopflow/internal/configserver"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
	"github.com/joao-fontenele/shopflow/internal/web"
)

func main() {
	ctx, stop := web.NotifyContext(context.Background())
	defer stop()

	logger := config.NewLogger(slog.LevelInfo)

	cfg, err := config.LoadConfigServer(ctx, logger)
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

	var store configserver.Store
	switch cfg.Backend {
	case config.BackendJDBC:
		db, err := telemetry.OpenPostgres(cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		if err := db.PingContext(ctx); err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}

		if cfg.MigrateOnStart {
			m, err := configserver.NewMigrator(db)
			if err != nil {
				logger.Error("failed to create migrator", "error", err)
				os.Exit(1)
			}
			err = m.Up()
			switch {
			case errors.Is(err, configserver.ErrNoChange):
				logger.Info("no pending migrations")
			case err != nil:
				logger.Error("migration up failed", "error", err)
				os.Exit(1)
			default:
				logger.Info("migrations applied successfully")
			}
		}
		store = configserver.NewPostgresStore(db)

	case config.BackendNative:
		fs := configserver.NewFileStore(cfg.NativeDir)
		apps, err := fs.Applications()
		if err != nil {
			logger.Error("failed to read config directory", "dir", cfg.NativeDir, "error", err)
			os.Exit(1)
		}
		logger.Info("serving config files", "dir", cfg.NativeDir, "applications", apps)
		store = fs

	default:
		logger.Error("unknown CONFIG_BACKEND", "backend", cfg.Backend)
		os.Exit(1)
	}

	static, err := auth.NewStatic(domain.Account{
		Username: cfg.Username,
		Password: cfg.Password,
		Rollen:   []string{domain.RoleAdmin},
	})
	if err != nil {
		logger.Error("failed to hash config credentials", "error", err)
		os.Exit(1)
	}

	svc := configserver.NewService(store, logger)
	guard := auth.NewGuard(static, configserver.Realm, logger)

	mux := http.NewServeMux()
	configserver.NewHandler(svc, guard, logger).Register(mux)
	app.Mount(mux, cfg.Service, metrics, map[string]web.Check{"store": svc.Ping}, logger)

	server := web.NewServer(cfg.Server(), app.Handler(mux, cfg.Service, logger))
	if err := web.Run(server, cfg.Server(), logger, "config server"); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
