// Package peer calls other services over HTTP. HTTPClient does the call;
// Resilient decorates any PeerClient with retries, a circuit breaker and a
// fallback value.
package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/registry"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 60 * time.Second
)

// PeerClient fetches one resource of type R by key from another service.
type PeerClient[R any] interface {
	Call(ctx context.Context, key string) (R, error)
}

// NewHTTPClient returns a traced client with a bounded connect timeout and a
// longer timeout for the response.
func NewHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = readTimeout

	return &http.Client{
		Transport: telemetry.NewTransport(transport),
		Timeout:   connectTimeout + readTimeout,
	}
}

type HTTPConfig struct {
	App        string
	PathPrefix string
	Username   string
	Password   string
}

// HTTPClient resolves App through the registry and issues
// GET {instance}{PathPrefix}/{key}, decoding the JSON body into R.
type HTTPClient[R any] struct {
	cfg      HTTPConfig
	resolver registry.Resolver
	client   *http.Client
}

func NewClient[R any](cfg HTTPConfig, resolver registry.Resolver, client *http.Client) *HTTPClient[R] {
	cfg.PathPrefix = "/" + strings.Trim(cfg.PathPrefix, "/")
	return &HTTPClient[R]{cfg: cfg, resolver: resolver, client: client}
}

func (c *HTTPClient[R]) Call(ctx context.Context, key string) (R, error) {
	var result R

	base, err := c.resolver.Resolve(ctx, c.cfg.App)
	if err != nil {
		return result, fmt.Errorf("resolve %s: %w", c.cfg.App, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+c.cfg.PathPrefix+"/"+url.PathEscape(key), nil)
	if err != nil {
		return result, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("call %s: %w", c.cfg.App, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return result, domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return result, fmt.Errorf("%s returned status %d", c.cfg.App, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("decode %s response: %w", c.cfg.App, err)
	}
	return result, nil
}
