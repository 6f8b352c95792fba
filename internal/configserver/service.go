package configserver

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/validation"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Service assembles environments from a Store.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Environment collects every source that applies to app and profiles.
// ErrNotFound when none of them holds a property.
func (s *Service) Environment(ctx context.Context, app, profiles string) (*Environment, error) {
	if err := checkNames(app, profiles); err != nil {
		return nil, err
	}

	env := &Environment{Name: app, Profiles: splitProfiles(profiles), PropertySources: []PropertySource{}}
	for _, k := range sourceKeys(app, profiles) {
		props, found, err := s.store.Load(ctx, k.application, k.profile)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", k.name(), err)
		}
		if !found {
			continue
		}
		env.PropertySources = append(env.PropertySources, PropertySource{Name: k.name(), Source: props})
	}

	if len(env.PropertySources) == 0 {
		return nil, domain.ErrNotFound
	}
	s.logger.Debug("environment served", "application", app, "profiles", profiles, "sources", len(env.PropertySources))
	return env, nil
}

func (s *Service) Merge(ctx context.Context, app, profile string, props map[string]string) error {
	if err := checkNames(app, profile); err != nil {
		return err
	}
	var v validation.Violations
	if len(props) == 0 {
		v.Add("at least one property is required")
	}
	for k := range props {
		if strings.TrimSpace(k) == "" {
			v.Add("property keys must not be blank")
			break
		}
	}
	if err := v.Err(); err != nil {
		return err
	}

	if err := s.store.Merge(ctx, app, profile, props); err != nil {
		return err
	}
	s.logger.Info("properties merged", "application", app, "profile", profile, "count", len(props))
	return nil
}

func (s *Service) Delete(ctx context.Context, app, profile, key string) error {
	if err := checkNames(app, profile); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, app, profile, key)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	s.logger.Info("property deleted", "application", app, "profile", profile, "key", key)
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func checkNames(app, profiles string) error {
	var v validation.Violations
	if !namePattern.MatchString(app) {
		v.Add("application must consist of letters, digits or underscores")
	}
	for _, p := range splitProfiles(profiles) {
		if !namePattern.MatchString(p) {
			v.Add("profile must consist of letters, digits or underscores")
			break
		}
	}
	return v.Err()
}

func splitProfiles(profiles string) []string {
	var out []string
	for _, p := range strings.Split(profiles, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{DefaultProfile}
	}
	return out
}
