package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/shopflow/internal/registry"
)

func TestServiceProxy_ForwardRequest(t *testing.T) {
	t.Run("forwards GET request with query", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("expected GET, got %s", r.Method)
			}
			if r.URL.Path != "/kunde" || r.URL.RawQuery != "nachname=a" {
				t.Errorf("unexpected target %s?%s", r.URL.Path, r.URL.RawQuery)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		proxy := NewServiceProxy(registry.StaticResolver{"kunde": server.URL}, server.Client())
		req := httptest.NewRequest(http.MethodGet, "/kunde?nachname=a", nil)
		resp, err := proxy.ForwardRequest(context.Background(), req, "kunde", "/kunde")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}
	})

	t.Run("forwards body and allowlisted headers only", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
			}
			if r.Header.Get("If-Match") != `"0"` {
				t.Errorf("expected If-Match to be forwarded, got %q", r.Header.Get("If-Match"))
			}
			if r.Header.Get("Cookie") != "" {
				t.Errorf("cookie must not be forwarded")
			}
			if r.Header.Get("X-Forwarded-Host") != "gateway.local" || r.Header.Get("X-Forwarded-Proto") != "http" {
				t.Errorf("unexpected forwarded headers %q %q", r.Header.Get("X-Forwarded-Host"), r.Header.Get("X-Forwarded-Proto"))
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"nachname":"Neu"}` {
				t.Errorf("unexpected body: %s", body)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		proxy := NewServiceProxy(registry.StaticResolver{"kunde": server.URL}, server.Client())
		req := httptest.NewRequest(http.MethodPut, "http://gateway.local/kunde", strings.NewReader(`{"nachname":"Neu"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("If-Match", `"0"`)
		req.Header.Set("Cookie", "session=1")
		resp, err := proxy.ForwardRequest(context.Background(), req, "kunde", "/kunde")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", resp.StatusCode)
		}
	})

	t.Run("unresolvable service", func(t *testing.T) {
		proxy := NewServiceProxy(registry.StaticResolver{}, http.DefaultClient)
		req := httptest.NewRequest(http.MethodGet, "/kunde", nil)
		_, err := proxy.ForwardRequest(context.Background(), req, "kunde", "/kunde")
		if !errors.Is(err, registry.ErrNoInstances) {
			t.Errorf("expected ErrNoInstances, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		proxy := NewServiceProxy(registry.StaticResolver{"kunde": server.URL}, server.Client())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		req := httptest.NewRequest(http.MethodGet, "/kunde", nil)
		_, err := proxy.ForwardRequest(ctx, req, "kunde", "/kunde")
		if err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}
