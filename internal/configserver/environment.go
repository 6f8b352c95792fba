package configserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

// DefaultApplication holds properties shared by every application.
const DefaultApplication = "application"

type PropertySource struct {
	Name   string            `json:"name"`
	Source map[string]string `json:"source"`
}

// Environment is the answer to GET /{application}/{profile}. Property
// sources are ordered most specific first.
type Environment struct {
	Name            string           `json:"name"`
	Profiles        []string         `json:"profiles"`
	PropertySources []PropertySource `json:"propertySources"`
}

// Flatten merges the sources so that more specific ones win.
func (e *Environment) Flatten() map[string]string {
	out := make(map[string]string)
	for i := len(e.PropertySources) - 1; i >= 0; i-- {
		for k, v := range e.PropertySources[i].Source {
			out[k] = v
		}
	}
	return out
}

// DefaultProfile names the base source of an application.
const DefaultProfile = "default"

type sourceKey struct {
	application string
	profile     string
}

func (k sourceKey) name() string {
	if k.profile == DefaultProfile {
		return k.application
	}
	return k.application + "-" + k.profile
}

// sourceKeys lists the sources for app and a comma separated profile
// list, most specific first. Later profiles take precedence.
func sourceKeys(app, profiles string) []sourceKey {
	var ps []string
	for _, p := range strings.Split(profiles, ",") {
		if p = strings.TrimSpace(p); p != "" && p != DefaultProfile {
			ps = append(ps, p)
		}
	}

	apps := []string{app}
	if app != DefaultApplication {
		apps = append(apps, DefaultApplication)
	}

	var keys []sourceKey
	for _, a := range apps {
		for i := len(ps) - 1; i >= 0; i-- {
			keys = append(keys, sourceKey{application: a, profile: ps[i]})
		}
		keys = append(keys, sourceKey{application: a, profile: DefaultProfile})
	}
	return keys
}

// Client reads environments from a running config server.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

func (c *Client) Fetch(ctx context.Context, app, profile string) (*Environment, error) {
	u := c.baseURL + "/" + url.PathEscape(app) + "/" + url.PathEscape(profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", app, profile, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("config server returned status %d", resp.StatusCode)
	}

	var env Environment
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &env, nil
}
