package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Geschlecht string

const (
	Maennlich Geschlecht = "M"
	Weiblich  Geschlecht = "W"
)

type Familienstand string

const (
	Ledig       Familienstand = "L"
	Verheiratet Familienstand = "VH"
	Geschieden  Familienstand = "G"
	Verwitwet   Familienstand = "VW"
)

type Interesse string

const (
	Sport  Interesse = "S"
	Lesen  Interesse = "L"
	Reisen Interesse = "R"
)

var (
	geschlechtNames = map[string]Geschlecht{
		"M": Maennlich, "MAENNLICH": Maennlich,
		"W": Weiblich, "WEIBLICH": Weiblich,
	}
	familienstandNames = map[string]Familienstand{
		"L": Ledig, "LEDIG": Ledig,
		"VH": Verheiratet, "VERHEIRATET": Verheiratet,
		"G": Geschieden, "GESCHIEDEN": Geschieden,
		"VW": Verwitwet, "VERWITWET": Verwitwet,
	}
	interesseNames = map[string]Interesse{
		"S": Sport, "SPORT": Sport,
		"L": Lesen, "LESEN": Lesen,
		"R": Reisen, "REISEN": Reisen,
	}
)

// ParseGeschlecht accepts the short value or the name, in any case.
func ParseGeschlecht(s string) (Geschlecht, bool) {
	g, ok := geschlechtNames[strings.ToUpper(strings.TrimSpace(s))]
	return g, ok
}

func ParseFamilienstand(s string) (Familienstand, bool) {
	f, ok := familienstandNames[strings.ToUpper(strings.TrimSpace(s))]
	return f, ok
}

func ParseInteresse(s string) (Interesse, bool) {
	i, ok := interesseNames[strings.ToUpper(strings.TrimSpace(s))]
	return i, ok
}

func (g *Geschlecht) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, "geschlecht", func(s string) bool {
		v, ok := ParseGeschlecht(s)
		*g = v
		return ok
	})
}

func (f *Familienstand) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, "familienstand", func(s string) bool {
		v, ok := ParseFamilienstand(s)
		*f = v
		return ok
	})
}

func (i *Interesse) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, "interesse", func(s string) bool {
		v, ok := ParseInteresse(s)
		*i = v
		return ok
	})
}

func unmarshalEnum(data []byte, kind string, parse func(string) bool) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	if s == "" {
		return nil
	}
	if !parse(s) {
		return fmt.Errorf("%q is not a valid %s", s, kind)
	}
	return nil
}
