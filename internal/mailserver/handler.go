package mailserver

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/shopflow/internal/telemetry"
	"github.com/joao-fontenele/shopflow/internal/web"
)

type Handler struct {
	inbox  *Inbox
	logger *slog.Logger
}

func NewHandler(inbox *Inbox, logger *slog.Logger) *Handler {
	return &Handler{inbox: inbox, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /mails", telemetry.WithHTTPRoute(h.HandleList))
	mux.HandleFunc("GET /mails/{id}", telemetry.WithHTTPRoute(h.HandleGet))
	mux.HandleFunc("DELETE /mails", telemetry.WithHTTPRoute(h.HandleClear))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			web.WriteError(w, h.logger, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	mails, err := h.inbox.List(limit)
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}
	web.WriteJSON(w, h.logger, http.StatusOK, mails)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	m, err := h.inbox.Get(r.PathValue("id"))
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}
	if m == nil {
		web.WriteError(w, h.logger, http.StatusNotFound, "mail not found")
		return
	}
	web.WriteJSON(w, h.logger, http.StatusOK, m)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	n, err := h.inbox.Clear()
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}
	h.logger.Info("inbox cleared", "deleted", n)
	w.WriteHeader(http.StatusNoContent)
}
