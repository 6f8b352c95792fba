// Package kunde manages customers: search, registration with an account,
// full and partial updates guarded by versions, deletion and media files.
package kunde

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/goware/emailx"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/joao-fontenele/shopflow/internal/cache"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/etag"
	"github.com/joao-fontenele/shopflow/internal/messaging"
	"github.com/joao-fontenele/shopflow/internal/patch"
	"github.com/joao-fontenele/shopflow/internal/validation"
)

type AccountSaver interface {
	Save(ctx context.Context, acc *domain.Account) error
}

type Validator interface {
	Struct(s any) error
	Var(field string, value any, tag string) error
}

type Service struct {
	repo      Repository
	media     MediaStore
	accounts  AccountSaver
	cache     *cache.Aside[domain.Kunde]
	validator Validator
	publisher messaging.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	repo Repository,
	media MediaStore,
	accounts AccountSaver,
	aside *cache.Aside[domain.Kunde],
	validator Validator,
	publisher messaging.Publisher,
	logger *slog.Logger,
) *Service {
	if publisher == nil {
		publisher = messaging.Discard{}
	}
	return &Service{
		repo:      repo,
		media:     media,
		accounts:  accounts,
		cache:     aside,
		validator: validator,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// parseID maps malformed ids to not found; they cannot name a stored customer.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.ErrNotFound
	}
	return oid, nil
}

// FindByID reads through the cache. The returned value is the caller's to modify.
func (s *Service) FindByID(ctx context.Context, id string) (*domain.Kunde, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	k, err := s.cache.GetOrLoad(ctx, id, func(ctx context.Context) (*domain.Kunde, error) {
		return s.repo.FindByID(ctx, oid)
	})
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, domain.ErrNotFound
	}
	return k.Clone(), nil
}

func (s *Service) Find(ctx context.Context, f Filter) ([]domain.Kunde, error) {
	if f.Email != "" {
		f.Email = emailx.Normalize(f.Email)
	}
	return s.repo.Find(ctx, f)
}

// Result carries the outcome of an asynchronous search.
type Result struct {
	Kunden []domain.Kunde
	Err    error
}

// FindByNachnameAsync runs the last name search on its own goroutine. The
// channel yields exactly one Result and is then closed.
func (s *Service) FindByNachnameAsync(ctx context.Context, nachname string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		kunden, err := s.repo.Find(ctx, Filter{Nachname: nachname})
		out <- Result{Kunden: kunden, Err: err}
	}()
	return out
}

func (s *Service) NachnamenByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.repo.NachnamenByPrefix(ctx, prefix)
}

func (s *Service) EmailsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.repo.EmailsByPrefix(ctx, strings.ToLower(prefix))
}

// normalizeEmail lower-cases the address and rejects malformed ones with a
// violation, the same way struct validation would.
func normalizeEmail(email string) (string, error) {
	if err := emailx.ValidateFast(email); err != nil {
		return "", &validation.Violations{Messages: []string{"email must be a valid email address"}}
	}
	return emailx.Normalize(email), nil
}

// Create registers a customer together with its account.
func (s *Service) Create(ctx context.Context, k *domain.Kunde) (*domain.Kunde, error) {
	if err := s.validator.Struct(k); err != nil {
		return nil, err
	}
	acc := k.Account
	if acc == nil {
		return nil, domain.ErrInvalidAccount
	}

	email, err := normalizeEmail(k.Email)
	if err != nil {
		return nil, err
	}
	k.Email = email

	existing, err := s.repo.FindByEmail(ctx, k.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateEmail
	}

	acc.Rollen = []string{domain.RoleKunde}
	if err := s.accounts.Save(ctx, acc); err != nil {
		return nil, err
	}

	now := s.now()
	k.Username = acc.Username
	k.Interessen = domain.UniqueInteressen(k.Interessen)
	k.Version = 0
	k.Erzeugt = now
	k.Aktualisiert = now
	k.Account = nil

	if err := s.repo.Insert(ctx, k); err != nil {
		return nil, err
	}
	s.logger.Info("kunde created", "id", k.ID.Hex(), "username", k.Username)

	event := domain.NeuerKundeEvent{
		KundeID:   k.ID.Hex(),
		Nachname:  k.Nachname,
		Email:     k.Email,
		Username:  k.Username,
		Timestamp: now,
	}
	if err := s.publisher.Publish(ctx, event.KundeID, event); err != nil {
		s.logger.Error("failed to publish kunde created event", "error", err, "id", event.KundeID)
	}
	return k, nil
}

// Update overwrites the mutable fields of the stored customer with those of
// k. ifMatch must name the stored version or a newer one.
func (s *Service) Update(ctx context.Context, k *domain.Kunde, ifMatch string) (*domain.Kunde, error) {
	if strings.TrimSpace(ifMatch) == "" {
		return nil, domain.ErrPreconditionRequired
	}

	stored, err := s.repo.FindByID(ctx, k.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, domain.ErrNotFound
	}

	version, err := etag.CheckIfMatch(ifMatch, stored.Version)
	if err != nil {
		return nil, err
	}

	k.Account = nil
	if err := s.validator.Struct(k); err != nil {
		return nil, err
	}

	updated := stored.Clone()
	updated.CopyFrom(k)
	return s.write(ctx, stored, updated, version)
}

// Patch applies ops to the stored customer. The If-Match header is checked
// before anything is loaded. Operations that were not understood are
// returned so the caller can report them.
func (s *Service) Patch(ctx context.Context, id, ifMatch string, ops []patch.Operation) (*domain.Kunde, []patch.Operation, error) {
	if strings.TrimSpace(ifMatch) == "" {
		return nil, nil, domain.ErrPreconditionRequired
	}

	oid, err := parseID(id)
	if err != nil {
		return nil, nil, err
	}
	stored, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		return nil, nil, err
	}
	if stored == nil {
		return nil, nil, domain.ErrNotFound
	}

	version, err := etag.CheckIfMatch(ifMatch, stored.Version)
	if err != nil {
		return nil, nil, err
	}

	cmds, ignored := patch.Parse(ops)
	for _, op := range ignored {
		s.logger.Debug("ignoring patch operation", "id", id, "operation", op.String())
	}

	patched, err := patch.Apply(stored, cmds, s.validator)
	if err != nil {
		return nil, ignored, err
	}

	updated, err := s.write(ctx, stored, patched, version)
	return updated, ignored, err
}

func (s *Service) write(ctx context.Context, stored, updated *domain.Kunde, version int) (*domain.Kunde, error) {
	email, err := normalizeEmail(updated.Email)
	if err != nil {
		return nil, err
	}
	updated.Email = email

	if updated.Email != stored.Email {
		other, err := s.repo.FindByEmail(ctx, updated.Email)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != stored.ID {
			return nil, domain.ErrDuplicateEmail
		}
	}

	updated.ID = stored.ID
	updated.Version = version
	updated.Erzeugt = stored.Erzeugt
	updated.Aktualisiert = s.now()

	ok, err := s.repo.Replace(ctx, updated, stored.Version)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: kunde %s changed concurrently", domain.ErrVersionConflict, stored.ID.Hex())
	}

	s.cache.Put(ctx, updated.ID.Hex(), *updated.Clone())
	s.logger.Info("kunde updated", "id", updated.ID.Hex(), "version", updated.Version)
	return updated, nil
}

func (s *Service) DeleteByID(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.DeleteByID(ctx, oid)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	s.cache.Evict(ctx, id)
	s.logger.Info("kunde deleted", "id", id)
	return nil
}

func (s *Service) DeleteByEmail(ctx context.Context, email string) error {
	k, err := s.repo.FindByEmail(ctx, emailx.Normalize(email))
	if err != nil {
		return err
	}
	if k == nil {
		return domain.ErrNotFound
	}
	return s.DeleteByID(ctx, k.ID.Hex())
}

// SaveMedia stores r as the single media file of customer id.
func (s *Service) SaveMedia(ctx context.Context, id string, r io.Reader, contentType string) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.media.Save(ctx, id, r, contentType); err != nil {
		return err
	}
	s.logger.Info("kunde media stored", "id", id, "content_type", contentType)
	return nil
}

func (s *Service) FindMedia(ctx context.Context, id string) (*Media, error) {
	if _, err := s.FindByID(ctx, id); err != nil {
		return nil, err
	}
	m, err := s.media.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
