package bestellung

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

//go:embed data/bestellungen.json
var sampleBestellungen []byte

// Seed stores the sample orders when the collection is empty.
func Seed(ctx context.Context, repo Repository, logger *slog.Logger) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logger.Info("bestellung collection not empty, skipping seed", "count", count)
		return 0, nil
	}

	var bestellungen []domain.Bestellung
	if err := json.Unmarshal(sampleBestellungen, &bestellungen); err != nil {
		return 0, fmt.Errorf("decode sample bestellungen: %w", err)
	}

	now := time.Now().UTC()
	for i := range bestellungen {
		b := &bestellungen[i]
		b.Datum = now.AddDate(0, 0, -i)
		b.Erzeugt = now
		b.Aktualisiert = now
		if err := repo.Insert(ctx, b); err != nil {
			return i, fmt.Errorf("seed bestellung %s: %w", b.ID.Hex(), err)
		}
	}

	logger.Info("seeded bestellungen", "count", len(bestellungen))
	return len(bestellungen), nil
}
