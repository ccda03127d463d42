package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"presupuesto/internal/core"
)

// Catalog is the reference data the planning core does not own.
type Catalog struct {
	Brands []BrandEntry `toml:"brands"`
}

type BrandEntry struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// DefaultCatalog is used when no catalog file exists.
func DefaultCatalog() Catalog {
	return Catalog{Brands: []BrandEntry{
		{ID: "norte", Name: "Norte"},
		{ID: "centro", Name: "Centro"},
		{ID: "sur", Name: "Sur"},
	}}
}

// LoadCatalog reads path, returning the default catalog when it does not exist.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultCatalog(), nil
		}
		return Catalog{}, fmt.Errorf("reading catalog: %w", err)
	}
	var c Catalog
	if _, err := toml.Decode(string(data), &c); err != nil {
		return Catalog{}, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// SaveCatalog writes c to path as TOML.
func SaveCatalog(path string, c Catalog) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating catalog dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating catalog file: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

func (c Catalog) Validate() error {
	if len(c.Brands) == 0 {
		return fmt.Errorf("catalog has no brands")
	}
	seen := make(map[string]bool, len(c.Brands))
	for _, b := range c.Brands {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			return fmt.Errorf("catalog brand %q: %w", b.ID, core.ErrEmptyBrand)
		}
		if seen[name] {
			return fmt.Errorf("catalog brand %q listed twice", name)
		}
		seen[name] = true
	}
	return nil
}

// BrandNames returns the brand display names in catalog order.
func (c Catalog) BrandNames() []string {
	out := make([]string, len(c.Brands))
	for i, b := range c.Brands {
		out[i] = b.Name
	}
	return out
}

// DomainBrands converts the entries to domain brands.
func (c Catalog) DomainBrands() []core.Brand {
	out := make([]core.Brand, len(c.Brands))
	for i, b := range c.Brands {
		out[i] = core.Brand{ID: b.ID, Name: b.Name}
	}
	return out
}

// HasBrand reports whether name is a catalog brand.
func (c Catalog) HasBrand(name string) bool {
	for _, b := range c.Brands {
		if b.Name == name {
			return true
		}
	}
	return false
}
