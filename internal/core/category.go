package core

import "strings"

// Category is the closed spend taxonomy. The numeric order is the canonical
// display order and every grouping must preserve it.
type Category int

const (
	CategoryDigital Category = iota + 1
	CategoryTraditionalMedia
	CategoryEvents
	CategoryPOP
	CategorySponsorships
	CategoryProduction
	CategoryOther
)

type categoryDef struct {
	name string
	subs []string
}

// taxonomy indexes by Category; index 0 is unused.
var taxonomy = [...]categoryDef{
	{},
	CategoryDigital:          {"Digital", []string{"Redes Sociales", "Google Ads", "Meta Ads", "Sitio Web", "Email Marketing"}},
	CategoryTraditionalMedia: {"Medios Tradicionales", []string{"Radio", "Televisión", "Prensa", "Espectaculares"}},
	CategoryEvents:           {"Eventos", []string{"Exhibiciones", "Lanzamientos", "Eventos en Piso"}},
	CategoryPOP:              {"Material POP", []string{"Impresos", "Señalización", "Promocionales"}},
	CategorySponsorships:     {"Patrocinios", []string{"Deportivos", "Culturales"}},
	CategoryProduction:       {"Producción", []string{"Fotografía", "Video", "Diseño"}},
	CategoryOther:            {"Otros", []string{"Varios"}},
}

// Categories returns every category in canonical order.
func Categories() []Category {
	out := make([]Category, 0, len(taxonomy)-1)
	for c := CategoryDigital; c <= CategoryOther; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	return c >= CategoryDigital && c <= CategoryOther
}

// String returns the display name.
func (c Category) String() string {
	if !c.Valid() {
		return "Desconocida"
	}
	return taxonomy[c].name
}

// Subcategories returns the valid subcategories of c in canonical order.
func (c Category) Subcategories() []string {
	if !c.Valid() {
		return nil
	}
	return append([]string(nil), taxonomy[c].subs...)
}

// SubcategoryIndex returns the canonical position of sub within c, or -1.
func (c Category) SubcategoryIndex(sub string) int {
	if !c.Valid() {
		return -1
	}
	for i, s := range taxonomy[c].subs {
		if s == sub {
			return i
		}
	}
	return -1
}

// ParseCategory resolves a display name (case-insensitive) into a Category.
func ParseCategory(name string) (Category, error) {
	name = strings.TrimSpace(name)
	for _, c := range Categories() {
		if strings.EqualFold(taxonomy[c].name, name) {
			return c, nil
		}
	}
	return 0, ErrInvalidCategory
}

// ValidPair reports whether sub is a defined subcategory of c.
func ValidPair(c Category, sub string) bool {
	return c.SubcategoryIndex(sub) >= 0
}

// MarshalText encodes the category as its display name.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrInvalidCategory
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a display name.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
