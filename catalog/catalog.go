// Package catalog is the read-only id -> definition lookup for every placeable or
// findable entity. The built-in set is embedded; a JSON file can replace it.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

type Kind string

const (
	KindStructure Kind = "STRUCTURE"
	KindStatue    Kind = "STATUE"
	KindArtifact  Kind = "ARTIFACT"
)

// UseType says what an artifact is aimed at.
type UseType string

const (
	UsePlayer UseType = "PLAYER"
	UseField  UseType = "FIELD"
	UseTrap   UseType = "TRAP"
)

// Definition is the static description of one entity.
type Definition struct {
	ID           int     `json:"id"`
	Kind         Kind    `json:"kind"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        int     `json:"price"`
	UpgradePrice int     `json:"upgrade_price,omitempty"`
	Yield        int     `json:"yield,omitempty"`
	EnergyCost   int     `json:"energy_cost,omitempty"`
	UseType      UseType `json:"use_type,omitempty"`
	Magnitude    int     `json:"magnitude,omitempty"`
	Uses         int     `json:"uses,omitempty"`
	RiverOnly    bool    `json:"river_only,omitempty"`
	Behavior     string  `json:"behavior,omitempty"`
	Script       string  `json:"script,omitempty"`
}

// Key is the identifier behavior registries are keyed by.
func (d Definition) Key() string {
	if d.Behavior != "" {
		return d.Behavior
	}
	return d.Name
}

// Catalog is immutable after construction and safe for concurrent reads.
type Catalog struct {
	byID map[int]Definition
	ids  []int
}

//go:embed entities.json
var builtin []byte

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic("embedded catalog is invalid: " + err.Error())
	}
	return c
}

// Load reads a catalog file, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var defs []Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(defs...)
}

// New builds a catalog from definitions, rejecting duplicate ids and unknown kinds.
func New(defs ...Definition) (*Catalog, error) {
	c := &Catalog{byID: make(map[int]Definition, len(defs))}
	for _, d := range defs {
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %d", d.ID)
		}
		switch d.Kind {
		case KindStructure, KindStatue:
		case KindArtifact:
			switch d.UseType {
			case UsePlayer, UseField, UseTrap:
			default:
				return nil, fmt.Errorf("artifact %d has unknown use type %q", d.ID, d.UseType)
			}
		default:
			return nil, fmt.Errorf("entity %d has unknown kind %q", d.ID, d.Kind)
		}
		c.byID[d.ID] = d
		c.ids = append(c.ids, d.ID)
	}
	sort.Ints(c.ids)
	return c, nil
}

func (c *Catalog) Get(id int) (Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Lookup returns the definition when it exists and has the wanted kind.
func (c *Catalog) Lookup(id int, kind Kind) (Definition, bool) {
	d, ok := c.byID[id]
	if !ok || d.Kind != kind {
		return Definition{}, false
	}
	return d, true
}

// All returns every definition of kind in id order.
func (c *Catalog) All(kind Kind) []Definition {
	var out []Definition
	for _, id := range c.ids {
		if d := c.byID[id]; d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Scripted returns the definitions that carry a Lua effect.
func (c *Catalog) Scripted() []Definition {
	var out []Definition
	for _, id := range c.ids {
		if d := c.byID[id]; d.Script != "" {
			out = append(out, d)
		}
	}
	return out
}
