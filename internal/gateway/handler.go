// Package gateway is the edge router: it maps path prefixes to services
// and forwards requests to a live instance.
package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/shopflow/internal/web"
)

var forwardedResponseHeaders = []string{
	"Content-Type",
	"ETag",
	"Location",
	"WWW-Authenticate",
	"Content-Length",
	"X-Patch-Ignored",
}

type Handler struct {
	routes  table
	proxy   *ServiceProxy
	logger  *slog.Logger
	proxied metric.Int64Counter
}

func NewHandler(routes []Route, proxy *ServiceProxy, logger *slog.Logger) *Handler {
	counter, _ := otel.Meter("shopflow/gateway").Int64Counter("gateway.proxied",
		metric.WithDescription("requests forwarded by the gateway"))
	return &Handler{
		routes:  newTable(routes),
		proxy:   proxy,
		logger:  logger,
		proxied: counter,
	}
}

// Routes lists the table in match order.
func (h *Handler) Routes() []Route {
	return append([]Route(nil), h.routes...)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, path, ok := h.routes.match(r.URL.EscapedPath())
	if !ok {
		h.logger.Debug("no route", "method", r.Method, "path", r.URL.Path)
		web.WriteError(w, h.logger, http.StatusNotFound, "no route")
		return
	}

	resp, err := h.proxy.ForwardRequest(r.Context(), r, route.Service, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "service", route.Service, "path", path)
		h.count(r, route, http.StatusBadGateway)
		web.WriteError(w, h.logger, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range forwardedResponseHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", r.URL.Path, "service", route.Service, "status", resp.StatusCode)
	h.count(r, route, resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) count(r *http.Request, route Route, status int) {
	h.proxied.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("route", route.Prefix),
		attribute.String("service", route.Service),
		attribute.String("status", strconv.Itoa(status)),
	))
}
