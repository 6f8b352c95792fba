package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Adresse struct {
	Plz string `json:"plz" bson:"plz" validate:"required,plz"`
	Ort string `json:"ort" bson:"ort" validate:"required"`
}

type Umsatz struct {
	Betrag   decimal.Decimal `json:"betrag" bson:"betrag" validate:"gte=0"`
	Waehrung string          `json:"waehrung" bson:"waehrung" validate:"required,iso4217"`
}

type Kunde struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Nachname      string             `json:"nachname" bson:"nachname" validate:"required,nachname"`
	Email         string             `json:"email" bson:"email" validate:"required,email"`
	Newsletter    bool               `json:"newsletter" bson:"newsletter"`
	Geburtsdatum  Date               `json:"geburtsdatum" bson:"geburtsdatum,omitempty"`
	Umsatz        *Umsatz            `json:"umsatz,omitempty" bson:"umsatz,omitempty" validate:"omitempty"`
	Homepage      string             `json:"homepage,omitempty" bson:"homepage,omitempty" validate:"omitempty,url"`
	Geschlecht    Geschlecht         `json:"geschlecht,omitempty" bson:"geschlecht,omitempty"`
	Familienstand Familienstand      `json:"familienstand,omitempty" bson:"familienstand,omitempty"`
	Interessen    []Interesse        `json:"interessen,omitempty" bson:"interessen,omitempty"`
	Adresse       *Adresse           `json:"adresse" bson:"adresse" validate:"required"`
	Username      string             `json:"username,omitempty" bson:"username,omitempty"`
	Version       int                `json:"version" bson:"version"`
	Erzeugt       time.Time          `json:"erzeugt" bson:"erzeugt"`
	Aktualisiert  time.Time          `json:"aktualisiert" bson:"aktualisiert"`

	// Account is only accepted on creation and never stored with the customer.
	Account *Account `json:"account,omitempty" bson:"-" validate:"-"`
}

func (k *Kunde) HasInteresse(i Interesse) bool {
	return slices.Contains(k.Interessen, i)
}

// AddInteresse keeps Interessen free of duplicates.
func (k *Kunde) AddInteresse(i Interesse) {
	if !k.HasInteresse(i) {
		k.Interessen = append(k.Interessen, i)
	}
}

func (k *Kunde) RemoveInteresse(i Interesse) {
	k.Interessen = slices.DeleteFunc(k.Interessen, func(x Interesse) bool { return x == i })
}

// UniqueInteressen drops repeated interests, keeping the first occurrence.
func UniqueInteressen(is []Interesse) []Interesse {
	out := make([]Interesse, 0, len(is))
	for _, i := range is {
		if !slices.Contains(out, i) {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CopyFrom takes over every field a full update may change.
func (k *Kunde) CopyFrom(src *Kunde) {
	k.Nachname = src.Nachname
	k.Email = src.Email
	k.Newsletter = src.Newsletter
	k.Geburtsdatum = src.Geburtsdatum
	k.Umsatz = src.Umsatz
	k.Homepage = src.Homepage
	k.Geschlecht = src.Geschlecht
	k.Familienstand = src.Familienstand
	k.Interessen = UniqueInteressen(src.Interessen)
	k.Adresse = src.Adresse
	if src.Username != "" {
		k.Username = src.Username
	}
}

// Clone returns a deep enough copy for cache and patch use.
func (k *Kunde) Clone() *Kunde {
	c := *k
	c.Interessen = slices.Clone(k.Interessen)
	if k.Adresse != nil {
		a := *k.Adresse
		c.Adresse = &a
	}
	if k.Umsatz != nil {
		u := *k.Umsatz
		c.Umsatz = &u
	}
	c.Account = nil
	return &c
}
