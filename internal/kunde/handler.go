package kunde

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/auth"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/etag"
	"github.com/joao-fontenele/shopflow/internal/hateoas"
	"github.com/joao-fontenele/shopflow/internal/patch"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
	"github.com/joao-fontenele/shopflow/internal/web"
)

const (
	maxMediaSize = 32 << 20

	// HeaderPatchIgnored lists PATCH operations that had no effect.
	HeaderPatchIgnored = "X-Patch-Ignored"
)

type Handler struct {
	svc       *Service
	guard     *auth.Guard
	assembler *hateoas.Assembler[domain.Kunde]
	logger    *slog.Logger
}

func NewHandler(svc *Service, guard *auth.Guard, logger *slog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		guard:     guard,
		assembler: hateoas.NewAssembler("/kunde", func(k *domain.Kunde) string { return k.ID.Hex() }),
		logger:    logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	admin := func(f http.HandlerFunc) http.HandlerFunc {
		return telemetry.WithHTTPRoute(h.guard.Require(f, domain.RoleAdmin))
	}
	kunde := func(f http.HandlerFunc) http.HandlerFunc {
		return telemetry.WithHTTPRoute(h.guard.Require(f, domain.RoleKunde, domain.RoleAdmin))
	}

	mux.HandleFunc("GET /kunde", admin(h.HandleList))
	mux.HandleFunc("GET /kunde/{id}", admin(h.HandleGet))
	mux.HandleFunc("GET /kunde/prefix/nachname/{prefix}", admin(h.HandleNachnamenPrefix))
	mux.HandleFunc("GET /kunde/prefix/email/{prefix}", admin(h.HandleEmailsPrefix))
	mux.HandleFunc("POST /kunde", telemetry.WithHTTPRoute(h.HandleCreate))
	mux.HandleFunc("PUT /kunde", kunde(h.HandleUpdate))
	mux.HandleFunc("PATCH /kunde/{id}", kunde(h.HandlePatch))
	mux.HandleFunc("DELETE /kunde/{id}", admin(h.HandleDelete))
	mux.HandleFunc("DELETE /kunde", admin(h.HandleDeleteByEmail))
	mux.HandleFunc("PUT /kunde/{id}/media", kunde(h.HandleUploadMedia))
	mux.HandleFunc("GET /kunde/{id}/media", telemetry.WithHTTPRoute(h.guard.Optional(h.HandleDownloadMedia)))
	mux.HandleFunc("GET /auth/rollen", telemetry.WithHTTPRoute(h.guard.Require(auth.HandleRollen(h.logger))))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	k, err := h.svc.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}

	w.Header().Set("ETag", etag.Format(k.Version))
	if etag.NotModified(r.Header.Get("If-None-Match"), k.Version) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	base := hateoas.BaseURL(r)
	res, err := h.assembler.ToResource(base, k)
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}
	res.Add(h.assembler.CollectionLinks(base, k, hateoas.RelList, hateoas.RelAdd, hateoas.RelUpdate, hateoas.RelRemove)...)

	web.WriteJSON(w, h.logger, http.StatusOK, res)
}

func filterFromQuery(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		Email:    q.Get("email"),
		Nachname: q.Get("nachname"),
		Plz:      q.Get("plz"),
		Ort:      q.Get("ort"),
	}
	if v := q.Get("newsletter"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Filter{}, errors.New("newsletter must be true or false")
		}
		f.Newsletter = &b
	}
	if v := q.Get("geschlecht"); v != "" {
		g, ok := domain.ParseGeschlecht(v)
		if !ok {
			return Filter{}, errors.New(v + " is not a valid geschlecht")
		}
		f.Geschlecht = g
	}
	return f, nil
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		web.WriteError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	kunden, err := h.svc.Find(r.Context(), f)
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}

	resources, err := h.assembler.ToResources(hateoas.BaseURL(r), kunden)
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}
	web.WriteJSON(w, h.logger, http.StatusOK, resources)
}

func (h *Handler) HandleNachnamenPrefix(w http.ResponseWriter, r *http.Request) {
	h.writeNames(w, r, h.svc.NachnamenByPrefix)
}

func (h *Handler) HandleEmailsPrefix(w http.ResponseWriter, r *http.Request) {
	h.writeNames(w, r, h.svc.EmailsByPrefix)
}

func (h *Handler) writeNames(w http.ResponseWriter, r *http.Request, find func(context.Context, string) ([]string, error)) {
	names, err := find(r.Context(), r.PathValue("prefix"))
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}
	if len(names) == 0 {
		web.WriteDomainError(w, r, h.logger, domain.ErrNotFound)
		return
	}
	web.WriteJSON(w, h.logger, http.StatusOK, names)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var k domain.Kunde
	if err := web.DecodeJSON(r, &k); err != nil {
		web.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	created, err := h.svc.Create(r.Context(), &k)
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", h.assembler.ItemURL(hateoas.BaseURL(r), created))
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var k domain.Kunde
	if err := web.DecodeJSON(r, &k); err != nil {
		web.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if k.ID.IsZero() {
		web.WriteError(w, h.logger, http.StatusBadRequest, "id is required")
		return
	}

	updated, err := h.svc.Update(r.Context(), &k, r.Header.Get("If-Match"))
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}

	w.Header().Set("ETag", etag.Format(updated.Version))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	ifMatch := r.Header.Get("If-Match")
	if strings.TrimSpace(ifMatch) == "" {
		web.WriteDomainError(w, r, h.logger, domain.ErrPreconditionRequired)
		return
	}

	var ops []patch.Operation
	if err := web.DecodeJSON(r, &ops); err != nil {
		web.WriteError(w, h.logger, http.StatusBadRequest, "invalid patch document")
		return
	}

	updated, ignored, err := h.svc.Patch(r.Context(), r.PathValue("id"), ifMatch, ops)
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}

	if len(ignored) > 0 {
		names := make([]string, len(ignored))
		for i, op := range ignored {
			names[i] = op.String()
		}
		w.Header().Set(HeaderPatchIgnored, strings.Join(names, ", "))
	}
	w.Header().Set("ETag", etag.Format(updated.Version))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteByID(r.Context(), r.PathValue("id")); err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDeleteByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		web.WriteError(w, h.logger, http.StatusBadRequest, "email is required")
		return
	}
	if err := h.svc.DeleteByEmail(r.Context(), email); err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleUploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMediaSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		web.WriteError(w, h.logger, http.StatusBadRequest, "multipart field file is required")
		return
	}
	defer func() { _ = file.Close() }()

	contentType := header.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	} else {
		contentType = "application/octet-stream"
	}

	if err := h.svc.SaveMedia(r.Context(), r.PathValue("id"), file, contentType); err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDownloadMedia(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.FindMedia(r.Context(), r.PathValue("id"))
	if err != nil {
		web.WriteDomainError(w, r, h.logger, err)
		return
	}
	defer func() { _ = m.Close() }()

	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		h.logger.Debug("media download", "id", r.PathValue("id"), "username", p.Username)
	}
	w.Header().Set("Content-Type", m.ContentType)
	if m.Length > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(m.Length, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, m); err != nil {
		h.logger.Warn("media download interrupted", "id", r.PathValue("id"), "error", err)
	}
}
