package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/web"
)

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// Guard enforces BASIC authentication for one realm.
type Guard struct {
	auth   Authenticator
	realm  string
	logger *slog.Logger
}

func NewGuard(a Authenticator, realm string, logger *slog.Logger) *Guard {
	return &Guard{auth: a, realm: realm, logger: logger}
}

// Require admits authenticated callers holding any of roles; no roles
// means any authenticated caller.
func (g *Guard) Require(h http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			g.challenge(w)
			return
		}

		p, err := g.auth.Authenticate(r.Context(), username, password)
		if errors.Is(err, domain.ErrUnauthorized) {
			g.logger.Info("authentication failed", "username", username, "path", r.URL.Path)
			g.challenge(w)
			return
		}
		if err != nil {
			web.WriteDomainError(w, r, g.logger, err)
			return
		}

		if !p.HasAnyRole(roles...) {
			g.logger.Info("access denied", "username", username, "path", r.URL.Path, "required", roles)
			web.WriteError(w, g.logger, http.StatusForbidden, "forbidden")
			return
		}

		h(w, r.WithContext(WithPrincipal(r.Context(), p)))
	}
}

// Optional attaches the principal when valid credentials are present and
// otherwise passes the request through anonymously.
func (g *Guard) Optional(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			h(w, r)
			return
		}
		p, err := g.auth.Authenticate(r.Context(), username, password)
		if err != nil {
			g.logger.Debug("ignoring invalid credentials", "username", username, "error", err)
			h(w, r)
			return
		}
		h(w, r.WithContext(WithPrincipal(r.Context(), p)))
	}
}

func (g *Guard) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+g.realm+`"`)
	web.WriteError(w, g.logger, http.StatusUnauthorized, "unauthorized")
}

// HandleRollen returns the roles of the authenticated caller.
func HandleRollen(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			web.WriteError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		web.WriteJSON(w, logger, http.StatusOK, p.Authorities())
	}
}
