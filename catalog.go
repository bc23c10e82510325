package popsimgo

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// AttributeLimits bounds a numeric catalog entry. Nil bounds are open.
type AttributeLimits struct {
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Description string   `json:"description,omitempty"`
}

// CatalogEntry describes one attribute key known to a world: its value
// type, durability class, and optional numeric limits.
type CatalogEntry struct {
	Key         string           `json:"key"`
	Type        string           `json:"type"`
	Durability  string           `json:"durability"`
	Limits      *AttributeLimits `json:"limits,omitempty"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category"`
}

// AttributeCatalog is the set of attribute declarations for a world.
// Its limits feed the clamp applied by every setAttr write.
type AttributeCatalog struct {
	Catalog []CatalogEntry `json:"catalog"`

	index map[string]*CatalogEntry
}

// LoadAttributeCatalog reads and indexes a catalog JSON file.
func LoadAttributeCatalog(path string) (*AttributeCatalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read attribute catalog %s", path)
	}
	c := new(AttributeCatalog)
	if err := json.Unmarshal(b, c); err != nil {
		return nil, errors.Wrapf(err, "cannot parse attribute catalog %s", path)
	}
	c.buildIndex()
	return c, nil
}

func (c *AttributeCatalog) buildIndex() {
	c.index = make(map[string]*CatalogEntry, len(c.Catalog))
	for i := range c.Catalog {
		c.index[c.Catalog[i].Key] = &c.Catalog[i]
	}
}

// Entry returns the catalog entry for a key, or nil if undeclared.
func (c *AttributeCatalog) Entry(key string) *CatalogEntry {
	if c == nil {
		return nil
	}
	if c.index == nil {
		c.buildIndex()
	}
	return c.index[key]
}

// Clamp applies the declared limits for key to a numeric value. Values of
// other kinds, and keys without declared limits, pass through unchanged.
// Clamping is idempotent: clamping an already clamped value is a no-op.
func (c *AttributeCatalog) Clamp(key string, v AttrValue) AttrValue {
	if v.Kind != NumberKind {
		return v
	}
	entry := c.Entry(key)
	if entry == nil || entry.Limits == nil {
		return v
	}
	if entry.Limits.Min != nil && v.Number < *entry.Limits.Min {
		v.Number = *entry.Limits.Min
	}
	if entry.Limits.Max != nil && v.Number > *entry.Limits.Max {
		v.Number = *entry.Limits.Max
	}
	return v
}
