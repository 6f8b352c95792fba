package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Bestellposition struct {
	ArtikelID   string          `json:"artikelId" bson:"artikelId" validate:"required"`
	Einzelpreis decimal.Decimal `json:"einzelpreis" bson:"einzelpreis" validate:"gt=0"`
	Anzahl      int             `json:"anzahl" bson:"anzahl" validate:"gte=1"`
}

type Bestellung struct {
	ID                primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Datum             time.Time          `json:"datum" bson:"datum"`
	KundeID           string             `json:"kundeId" bson:"kundeId" validate:"required"`
	Bestellpositionen []Bestellposition  `json:"bestellpositionen" bson:"bestellpositionen" validate:"required,min=1,dive"`
	Version           int                `json:"version" bson:"version"`
	Erzeugt           time.Time          `json:"erzeugt" bson:"erzeugt"`
	Aktualisiert      time.Time          `json:"aktualisiert" bson:"aktualisiert"`

	// KundeNachname is filled from the customer service at read time.
	KundeNachname string `json:"kundeNachname,omitempty" bson:"-"`
}

func (b *Bestellung) Gesamtbetrag() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range b.Bestellpositionen {
		sum = sum.Add(p.Einzelpreis.Mul(decimal.NewFromInt(int64(p.Anzahl))))
	}
	return sum
}

// Clone copies the positions so the copy can be changed independently.
func (b *Bestellung) Clone() *Bestellung {
	c := *b
	c.Bestellpositionen = slices.Clone(b.Bestellpositionen)
	return &c
}
