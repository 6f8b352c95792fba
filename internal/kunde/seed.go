package kunde

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

//go:embed data/kunden.json
var sampleKunden []byte

// SampleKunden decodes the embedded development customers, accounts included.
func SampleKunden() ([]domain.Kunde, error) {
	var kunden []domain.Kunde
	if err := json.Unmarshal(sampleKunden, &kunden); err != nil {
		return nil, fmt.Errorf("decode sample kunden: %w", err)
	}
	return kunden, nil
}

// Seed stores the sample customers and their accounts when the collection is
// empty. Accounts that already exist are kept.
func Seed(ctx context.Context, repo Repository, accounts AccountSaver, logger *slog.Logger) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logger.Info("kunde collection not empty, skipping seed", "count", count)
		return 0, nil
	}

	kunden, err := SampleKunden()
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	for i := range kunden {
		k := &kunden[i]
		if acc := k.Account; acc != nil {
			if err := accounts.Save(ctx, acc); err != nil && !errors.Is(err, domain.ErrUsernameExists) {
				return i, fmt.Errorf("seed account %s: %w", acc.Username, err)
			}
			k.Username = acc.Username
			k.Account = nil
		}
		k.Erzeugt = now
		k.Aktualisiert = now
		if err := repo.Insert(ctx, k); err != nil {
			return i, fmt.Errorf("seed kunde %s: %w", k.Email, err)
		}
	}

	logger.Info("seeded kunden", "count", len(kunden))
	return len(kunden), nil
}

// LogAll writes every stored customer to the debug log, using the
// asynchronous search.
func LogAll(ctx context.Context, svc *Service, logger *slog.Logger) {
	res := <-svc.FindByNachnameAsync(ctx, "")
	if res.Err != nil {
		logger.Warn("failed to list kunden", "error", res.Err)
		return
	}
	for _, k := range res.Kunden {
		logger.Debug("kunde", "id", k.ID.Hex(), "nachname", k.Nachname, "email", k.Email, "version", k.Version)
	}
	logger.Info("kunden in store", "count", len(res.Kunden))
}
