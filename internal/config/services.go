package config

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joao-fontenele/shopflow/internal/telemetry"
	"github.com/joao-fontenele/shopflow/internal/web"
)

// Service holds what every HTTP process needs.
type Service struct {
	Name        string
	Profile     string
	LogLevel    slog.Level
	Port        string
	TLSCertFile string
	TLSKeyFile  string
	Telemetry   telemetry.Config

	// RegistryURL empty means peers are resolved from ServiceURLs.
	RegistryURL     string
	InstanceHost    string
	RenewalInterval time.Duration
	ServiceURLs     map[string]string
}

func (c Service) Server() web.ServerConfig {
	return web.ServerConfig{
		Addr:        ":" + c.Port,
		TLSCertFile: c.TLSCertFile,
		TLSKeyFile:  c.TLSKeyFile,
	}
}

// Dev reports whether sample data should be seeded.
func (c Service) Dev() bool {
	return c.Profile == "dev"
}

func loadService(s *Source, name, port string) Service {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "localhost"
	}

	return Service{
		Name:        name,
		Profile:     s.String("PROFILE", "default"),
		LogLevel:    s.Level("LOG_LEVEL", slog.LevelInfo),
		Port:        s.String("PORT", port),
		TLSCertFile: s.String("TLS_CERT_FILE", ""),
		TLSKeyFile:  s.String("TLS_KEY_FILE", ""),
		Telemetry: telemetry.Config{
			ServiceName:    name,
			ServiceVersion: s.String("SERVICE_VERSION", "dev"),
			Endpoint:       s.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
		RegistryURL:     s.String("REGISTRY_URL", ""),
		InstanceHost:    s.String("INSTANCE_HOST", hostname),
		RenewalInterval: s.Duration("RENEWAL_INTERVAL", 30*time.Second),
		ServiceURLs: s.Map("SERVICE_URLS", map[string]string{
			"kunde":      "http://localhost:8081",
			"bestellung": "http://localhost:8082",
		}),
	}
}

type Mongo struct {
	URI      string
	Database string
	PoolSize uint64
}

func loadMongo(s *Source, database string) Mongo {
	return Mongo{
		URI:      s.String("MONGO_URI", "mongodb://localhost:27017"),
		Database: s.String("MONGO_DATABASE", database),
		PoolSize: uint64(s.Int("MONGO_POOL_SIZE", 10)),
	}
}

// Redis with an empty Addr selects the in-process cache.
type Redis struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func loadRedis(s *Source) Redis {
	return Redis{
		Addr:     s.String("REDIS_ADDR", ""),
		Password: s.String("REDIS_PASSWORD", ""),
		DB:       s.Int("REDIS_DB", 0),
		TTL:      s.Duration("CACHE_TTL", 10*time.Minute),
	}
}

type Kunde struct {
	Service
	Mongo        Mongo
	Redis        Redis
	KafkaBrokers []string
}

func LoadKunde(ctx context.Context, logger *slog.Logger) (Kunde, error) {
	s, err := Load(ctx, "kunde", logger)
	if err != nil {
		return Kunde{}, err
	}
	cfg := Kunde{
		Service:      loadService(s, "kunde", "8081"),
		Mongo:        loadMongo(s, "kunde"),
		Redis:        loadRedis(s),
		KafkaBrokers: s.List("KAFKA_BROKERS", nil),
	}
	return cfg, s.Err()
}

type Bestellung struct {
	Service
	Mongo         Mongo
	Redis         Redis
	KundeUsername string
	KundePassword string
}

func LoadBestellung(ctx context.Context, logger *slog.Logger) (Bestellung, error) {
	s, err := Load(ctx, "bestellung", logger)
	if err != nil {
		return Bestellung{}, err
	}
	cfg := Bestellung{
		Service:       loadService(s, "bestellung", "8082"),
		Mongo:         loadMongo(s, "bestellung"),
		Redis:         loadRedis(s),
		KundeUsername: s.String("KUNDE_USERNAME", "admin"),
		KundePassword: s.String("KUNDE_PASSWORD", "p"),
	}
	return cfg, s.Err()
}

type Gateway struct {
	Service
	Routes string
}

func LoadGateway(ctx context.Context, logger *slog.Logger) (Gateway, error) {
	s, err := Load(ctx, "gateway", logger)
	if err != nil {
		return Gateway{}, err
	}
	cfg := Gateway{
		Service: loadService(s, "gateway", "8443"),
		Routes:  s.String("GATEWAY_ROUTES", ""),
	}
	return cfg, s.Err()
}

type Registry struct {
	Service
	Lease            time.Duration
	EvictionInterval time.Duration
}

func LoadRegistry(ctx context.Context, logger *slog.Logger) (Registry, error) {
	s, err := Load(ctx, "registry", logger)
	if err != nil {
		return Registry{}, err
	}
	cfg := Registry{
		Service:          loadService(s, "registry", "8761"),
		Lease:            s.Duration("LEASE_DURATION", 90*time.Second),
		EvictionInterval: s.Duration("EVICTION_INTERVAL", 60*time.Second),
	}
	return cfg, s.Err()
}

const (
	BackendJDBC   = "jdbc"
	BackendNative = "native"
)

type ConfigServer struct {
	Service
	Backend        string
	PostgresURL    string
	NativeDir      string
	MigrateOnStart bool
	Username       string
	Password       string
}

func LoadConfigServer(ctx context.Context, logger *slog.Logger) (ConfigServer, error) {
	s, err := Load(ctx, "configserver", logger)
	if err != nil {
		return ConfigServer{}, err
	}
	cfg := ConfigServer{
		Service:        loadService(s, "configserver", "8888"),
		Backend:        s.String("CONFIG_BACKEND", BackendJDBC),
		NativeDir:      s.String("CONFIG_NATIVE_DIR", "config"),
		MigrateOnStart: s.Bool("MIGRATE_ON_START", false),
		Username:       s.String("CONFIG_USERNAME", "admin"),
		Password:       s.String("CONFIG_PASSWORD", "p"),
	}
	if cfg.Backend == BackendJDBC {
		cfg.PostgresURL = s.Require("POSTGRES_URL")
	}
	return cfg, s.Err()
}

type Mailserver struct {
	Service
	SMTPAddr string
	Domain   string
	DBPath   string
}

func LoadMailserver(ctx context.Context, logger *slog.Logger) (Mailserver, error) {
	s, err := Load(ctx, "mailserver", logger)
	if err != nil {
		return Mailserver{}, err
	}
	cfg := Mailserver{
		Service:  loadService(s, "mailserver", "8025"),
		SMTPAddr: s.String("SMTP_ADDR", ":25000"),
		Domain:   s.String("SMTP_DOMAIN", "localhost"),
		DBPath:   s.String("MAIL_DB_PATH", "mails.db"),
	}
	return cfg, s.Err()
}

type Mail struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Worker struct {
	Service
	KafkaBrokers []string
	GroupID      string
	Mail         Mail
}

func LoadWorker(ctx context.Context, logger *slog.Logger) (Worker, error) {
	s, err := Load(ctx, "worker", logger)
	if err != nil {
		return Worker{}, err
	}
	cfg := Worker{
		Service:      loadService(s, "worker", ""),
		KafkaBrokers: s.List("KAFKA_BROKERS", nil),
		GroupID:      s.String("KAFKA_GROUP_ID", "mail-worker"),
		Mail: Mail{
			Host:     s.String("MAIL_HOST", "localhost"),
			Port:     s.Int("MAIL_PORT", 25000),
			Username: s.String("MAIL_USERNAME", ""),
			Password: s.String("MAIL_PASSWORD", ""),
			From:     s.String("MAIL_FROM", "noreply@shopflow.local"),
		},
	}
	if len(cfg.KafkaBrokers) == 0 {
		s.Require("KAFKA_BROKERS")
	}
	return cfg, s.Err()
}
