package configserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/auth"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
	"github.com/joao-fontenele/shopflow/internal/web"
)

// Realm of the BASIC challenge for writes.
const Realm = "CONFIG"

type Handler struct {
	svc    *Service
	guard  *auth.Guard
	logger *slog.Logger
}

func NewHandler(svc *Service, guard *auth.Guard, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, guard: guard, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	admin := func(fn http.HandlerFunc) http.HandlerFunc {
		return telemetry.WithHTTPRoute(h.guard.Require(fn, domain.RoleAdmin))
	}

	mux.HandleFunc("GET /{application}/{profile}", telemetry.WithHTTPRoute(h.HandleEnvironment))
	mux.HandleFunc("PUT /{application}/{profile}", admin(h.HandleMerge))
	mux.HandleFunc("DELETE /{application}/{profile}/{key}", admin(h.HandleDelete))
}

func (h *Handler) HandleEnvironment(w http.ResponseWriter, r *http.Request) {
	env, err := h.svc.Environment(r.Context(), r.PathValue("application"), r.PathValue("profile"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.WriteJSON(w, h.logger, http.StatusOK, env)
}

func (h *Handler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	var props map[string]string
	if err := web.DecodeJSON(r, &props); err != nil {
		web.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Merge(r.Context(), r.PathValue("application"), r.PathValue("profile"), props); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Delete(r.Context(), r.PathValue("application"), r.PathValue("profile"), r.PathValue("key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrReadOnly) {
		web.WriteError(w, h.logger, http.StatusMethodNotAllowed, err.Error())
		return
	}
	web.WriteDomainError(w, r, h.logger, err)
}
