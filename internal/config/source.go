// Package config assembles per-process configuration from compiled
// defaults, the config server, an optional .env file and the process
// environment, in increasing order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"

	"github.com/joao-fontenele/shopflow/internal/configserver"
)

const remoteTimeout = 5 * time.Second

// Source resolves keys against the layered configuration. Parse failures
// are collected and reported by Err.
type Source struct {
	env    func(string) (string, bool)
	dotenv gotenv.Env
	remote map[string]string
	errs   []error
}

func NewSource(env func(string) (string, bool), dotenv gotenv.Env, remote map[string]string) *Source {
	if env == nil {
		env = func(string) (string, bool) { return "", false }
	}
	return &Source{env: env, dotenv: dotenv, remote: remote}
}

// Load reads ENV_FILE (default .env) and, when CONFIG_SERVER_URL is set,
// the properties of app for PROFILE. An unreachable config server is
// logged and skipped.
func Load(ctx context.Context, app string, logger *slog.Logger) (*Source, error) {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}

	dotenv, err := gotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	s := NewSource(os.LookupEnv, dotenv, nil)

	serverURL := s.String("CONFIG_SERVER_URL", "")
	if serverURL == "" {
		return s, nil
	}
	profile := s.String("PROFILE", "default")

	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	client := configserver.NewClient(serverURL, &http.Client{Timeout: remoteTimeout})
	env, err := client.Fetch(ctx, app, profile)
	if err != nil {
		logger.Warn("config server unavailable, using local configuration",
			"url", serverURL, "application", app, "profile", profile, "error", err)
		return s, nil
	}

	s.remote = env.Flatten()
	logger.Info("loaded remote configuration",
		"url", serverURL, "application", app, "profile", profile, "properties", len(s.remote))
	return s, nil
}

// propertyName maps MONGO_URI to mongo.uri, the form used on the config server.
func propertyName(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "_", ".")
}

func (s *Source) lookup(key string) (string, bool) {
	if v, ok := s.env(key); ok && v != "" {
		return v, true
	}
	if v, ok := s.dotenv[key]; ok && v != "" {
		return v, true
	}
	if v, ok := s.remote[key]; ok && v != "" {
		return v, true
	}
	if v, ok := s.remote[propertyName(key)]; ok && v != "" {
		return v, true
	}
	return "", false
}

func (s *Source) String(key, def string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return def
}

func (s *Source) Int(key string, def int) int {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (s *Source) Bool(key string, def bool) bool {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (s *Source) Duration(key string, def time.Duration) time.Duration {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

// List splits a comma separated value, dropping blanks.
func (s *Source) List(key string, def []string) []string {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Map parses "k1=v1,k2=v2".
func (s *Source) Map(key string, def map[string]string) map[string]string {
	items := s.List(key, nil)
	if items == nil {
		return def
	}
	out := make(map[string]string, len(items))
	for _, item := range items {
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			s.errs = append(s.errs, fmt.Errorf("%s: expected key=value, got %q", key, item))
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

func (s *Source) Level(key string, def slog.Level) slog.Level {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: invalid log level %q", key, v))
		return def
	}
	return level
}

// Require records an error when key has no value anywhere.
func (s *Source) Require(key string) string {
	v, ok := s.lookup(key)
	if !ok {
		s.errs = append(s.errs, fmt.Errorf("%s is required", key))
	}
	return v
}

func (s *Source) Err() error {
	return errors.Join(s.errs...)
}

// NewLogger builds the JSON logger every process writes to stdout.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
