package bestellung

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/etag"
	"github.com/joao-fontenele/shopflow/internal/hateoas"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
	"github.com/joao-fontenele/shopflow/internal/web"
)

type Handler struct {
	svc       *Service
	assembler *hateoas.Assembler[domain.Bestellung]
	logger    *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		assembler: hateoas.NewAssembler("/bestellung", func(b *domain.Bestellung) string { return b.ID.Hex() }),
		logger:    logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /bestellung", telemetry.WithHTTPRoute(h.HandleList))
	mux.HandleFunc("GET /bestellung/{id}", telemetry.WithHTTPRoute(h.HandleGet))
	mux.HandleFunc("POST /bestellung", telemetry.WithHTTPRoute(h.HandleCreate))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}

	w.Header().Set("ETag", etag.Format(b.Version))
	if etag.NotModified(r.Header.Get("If-None-Match"), b.Version) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	base := hateoas.BaseURL(r)
	res, err := h.assembler.ToResource(base, b)
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}
	res.Add(h.assembler.CollectionLinks(base, b, hateoas.RelList, hateoas.RelAdd)...)

	web.WriteJSON(w, h.logger, http.StatusOK, res)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	bestellungen, err := h.svc.FindByKundeID(r.Context(), r.URL.Query().Get("kundeId"))
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}

	resources, err := h.assembler.ToResources(hateoas.BaseURL(r), bestellungen)
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}
	web.WriteJSON(w, h.logger, http.StatusOK, resources)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var b domain.Bestellung
	if err := web.DecodeJSON(r, &b); err != nil {
		web.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.Create(r.Context(), &b)
	if errors.Is(err, ErrKundeNotFound) {
		web.WriteError(w, h.logger, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", h.assembler.ItemURL(hateoas.BaseURL(r), created))
	w.WriteHeader(http.StatusCreated)
}
