// Package bestellung manages orders. Reads are enriched with the customer's
// last name fetched from the customer service.
package bestellung

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/joao-fontenele/shopflow/internal/cache"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/peer"
)

// ErrKundeNotFound rejects orders for customers that are unknown or
// cannot be confirmed.
var ErrKundeNotFound = fmt.Errorf("kunde %w", domain.ErrNotFound)

// KundeInfo is the part of a customer the order service reads.
type KundeInfo struct {
	ID       string `json:"id"`
	Nachname string `json:"nachname"`
}

// KundeFallback stands in for a customer while the customer service is
// unavailable. It carries no name.
func KundeFallback(_ context.Context, key string, _ error) KundeInfo {
	return KundeInfo{ID: key}
}

type Validator interface {
	Struct(s any) error
}

type Service struct {
	repo      Repository
	kunden    peer.PeerClient[KundeInfo]
	cache     *cache.Aside[domain.Bestellung]
	validator Validator
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, kunden peer.PeerClient[KundeInfo], aside *cache.Aside[domain.Bestellung], validator Validator, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		kunden:    kunden,
		cache:     aside,
		validator: validator,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// FindByID reads the stored order through the cache and adds the
// customer's name. A failing customer lookup leaves the name empty.
func (s *Service) FindByID(ctx context.Context, id string) (*domain.Bestellung, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	b, err := s.cache.GetOrLoad(ctx, id, func(ctx context.Context) (*domain.Bestellung, error) {
		return s.repo.FindByID(ctx, oid)
	})
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, domain.ErrNotFound
	}

	b = b.Clone()
	s.enrich(ctx, b)
	return b, nil
}

func (s *Service) enrich(ctx context.Context, b *domain.Bestellung) {
	info, err := s.kunden.Call(ctx, b.KundeID)
	switch {
	case err == nil:
		b.KundeNachname = info.Nachname
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Warn("bestellung references unknown kunde", "id", b.ID.Hex(), "kunde_id", b.KundeID)
	default:
		s.logger.Debug("kunde name unavailable", "id", b.ID.Hex(), "kunde_id", b.KundeID, "error", err)
	}
}

// FindByKundeID lists the orders of one customer, or all orders for an
// empty id. Results are not enriched.
func (s *Service) FindByKundeID(ctx context.Context, kundeID string) ([]domain.Bestellung, error) {
	return s.repo.FindByKundeID(ctx, kundeID)
}

// Create stores a new order after confirming the customer exists.
func (s *Service) Create(ctx context.Context, b *domain.Bestellung) (*domain.Bestellung, error) {
	if err := s.validator.Struct(b); err != nil {
		return nil, err
	}

	if _, err := s.kunden.Call(ctx, b.KundeID); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPeerUnavailable) {
			s.logger.Info("rejecting bestellung", "kunde_id", b.KundeID, "error", err)
			return nil, ErrKundeNotFound
		}
		return nil, err
	}

	now := s.now()
	b.ID = primitive.NilObjectID
	b.Datum = now
	b.Version = 0
	b.Erzeugt = now
	b.Aktualisiert = now
	b.KundeNachname = ""

	if err := s.repo.Insert(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info("bestellung created", "id", b.ID.Hex(), "kunde_id", b.KundeID, "gesamtbetrag", b.Gesamtbetrag().String())
	return b, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
