package registry

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/web"
)

type Handler struct {
	registry *Registry
	logger   *slog.Logger
}

func NewHandler(registry *Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /apps", wrap(h.HandleApps))
	mux.HandleFunc("GET /apps/{app}", wrap(h.HandleInstances))
	mux.HandleFunc("POST /apps/{app}", wrap(h.HandleRegister))
	mux.HandleFunc("PUT /apps/{app}/{id}", wrap(h.HandleRenew))
	mux.HandleFunc("DELETE /apps/{app}/{id}", wrap(h.HandleCancel))
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var inst Instance
	if err := json.NewDecoder(r.Body).Decode(&inst); err != nil {
		web.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if inst.Host == "" || inst.Port <= 0 {
		web.WriteError(w, h.logger, http.StatusBadRequest, "host and port are required")
		return
	}

	registered := h.registry.Register(r.PathValue("app"), inst)
	web.WriteJSON(w, h.logger, http.StatusOK, registered)
}

func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Renew(r.PathValue("app"), r.PathValue("id")) {
		web.WriteError(w, h.logger, http.StatusNotFound, "instance not registered")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Cancel(r.PathValue("app"), r.PathValue("id")) {
		web.WriteError(w, h.logger, http.StatusNotFound, "instance not registered")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) HandleInstances(w http.ResponseWriter, r *http.Request) {
	instances := h.registry.Instances(r.PathValue("app"))
	if len(instances) == 0 {
		web.WriteError(w, h.logger, http.StatusNotFound, "no instances")
		return
	}
	web.WriteJSON(w, h.logger, http.StatusOK, instances)
}

func (h *Handler) HandleApps(w http.ResponseWriter, _ *http.Request) {
	web.WriteJSON(w, h.logger, http.StatusOK, h.registry.Apps())
}
