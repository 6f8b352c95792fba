package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/registry"
)

var forwardedRequestHeaders = []string{
	"Authorization",
	"Content-Type",
	"Accept",
	"If-Match",
	"If-None-Match",
	"X-Request-ID",
}

// ServiceProxy forwards requests to whichever instance the resolver
// returns for a service.
type ServiceProxy struct {
	resolver registry.Resolver
	client   *http.Client
}

func NewServiceProxy(resolver registry.Resolver, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		resolver: resolver,
		client:   client,
	}
}

// ForwardRequest sends r to service. path must be in escaped form so
// encoded reserved characters reach the backend unchanged.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, service, path string) (*http.Response, error) {
	baseURL, err := p.resolver.Resolve(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", service, err)
	}

	target := baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = r.ContentLength

	for _, name := range forwardedRequestHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	req.Header.Set("X-Forwarded-Host", forwardedHost(r))
	req.Header.Set("X-Forwarded-Proto", forwardedProto(r))

	return p.client.Do(req)
}

func forwardedHost(r *http.Request) string {
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		return h
	}
	return r.Host
}

func forwardedProto(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
