package manifold

import (
	"fmt"
	"sort"

	"github.com/kittclouds/taxomine/pkg/padic"
)

// Coordinates assigns every entity a residue modulo p^Precision.
//
// A residue x factors as p^level * unit. The level is the entity's depth
// below the root (generalities sit at level 0). The unit carries the branch
// path in base-p digits, so two entities whose units agree on their first r
// digits share an ancestor r-1 levels deep.
type Coordinates struct {
	Prime     uint64            `json:"prime"`
	Precision int               `json:"precision"`
	Residues  map[string]uint64 `json:"residues"`
	// Digits overrides Precision for entities that could not be refined.
	Digits map[string]int `json:"digits,omitempty"`
}

// NewCoordinates returns an empty assignment for prime p at precision k.
func NewCoordinates(prime uint64, precision int) (*Coordinates, error) {
	if !padic.IsPrime(prime) {
		return nil, fmt.Errorf("manifold: %d: %w", prime, padic.ErrNotPrime)
	}
	if precision < 1 {
		return nil, fmt.Errorf("manifold: precision %d must be positive", precision)
	}
	if _, err := padic.Pow(prime, precision); err != nil {
		return nil, err
	}
	return &Coordinates{
		Prime:     prime,
		Precision: precision,
		Residues:  make(map[string]uint64),
	}, nil
}

// Modulus returns p^Precision.
func (c *Coordinates) Modulus() uint64 {
	return padic.MustPow(c.Prime, c.Precision)
}

// Place stores the residue p^level * unit for id.
func (c *Coordinates) Place(id string, level int, unit uint64) {
	m := c.Modulus()
	if level >= c.Precision {
		c.Residues[id] = 0
		return
	}
	c.Residues[id] = padic.MulMod(padic.MustPow(c.Prime, level), unit, m)
}

// Set stores a raw residue for id at the given precision.
func (c *Coordinates) Set(id string, residue uint64, precision int) {
	c.Residues[id] = residue % padic.MustPow(c.Prime, precision)
	if precision == c.Precision {
		delete(c.Digits, id)
		return
	}
	if c.Digits == nil {
		c.Digits = make(map[string]int)
	}
	c.Digits[id] = precision
}

func (c *Coordinates) Has(id string) bool {
	_, ok := c.Residues[id]
	return ok
}

func (c *Coordinates) Residue(id string) (uint64, bool) {
	x, ok := c.Residues[id]
	return x, ok
}

// PrecisionOf returns the number of base-p digits known for id.
func (c *Coordinates) PrecisionOf(id string) int {
	if d, ok := c.Digits[id]; ok {
		return d
	}
	return c.Precision
}

// Level returns v_p of the entity's residue, capped at its precision.
func (c *Coordinates) Level(id string) int {
	return padic.Valuation(c.Residues[id], c.Prime, c.PrecisionOf(id))
}

// Unit returns the unit part of id's residue and how many of its digits are
// known.
func (c *Coordinates) Unit(id string) (uint64, int) {
	k := c.PrecisionOf(id)
	level := c.Level(id)
	digits := k - level
	if digits <= 0 {
		return 0, 0
	}
	u := c.Residues[id] / padic.MustPow(c.Prime, level)
	return u % padic.MustPow(c.Prime, digits), digits
}

// Proximity is v_p(u_a - u_b) over the digits known for both units. It is one
// more than the level of the deepest common ancestor, and 0 for entities on
// different branches of the root.
func (c *Coordinates) Proximity(a, b string) int {
	ua, da := c.Unit(a)
	ub, db := c.Unit(b)
	digits := min(da, db)
	if digits == 0 {
		return 0
	}
	m := padic.MustPow(c.Prime, digits)
	return padic.Valuation(padic.SubMod(ua%m, ub%m, m), c.Prime, digits)
}

// Orient returns (parent, child) for a related pair: the endpoint at the lower
// level is the parent, then the one with higher centrality, then the smaller
// ID. Argument order never matters.
func (c *Coordinates) Orient(a, b string, centrality map[string]float64) (string, string) {
	la, lb := c.Level(a), c.Level(b)
	switch {
	case la < lb:
		return a, b
	case lb < la:
		return b, a
	}
	ca, cb := centrality[a], centrality[b]
	switch {
	case ca > cb:
		return a, b
	case cb > ca:
		return b, a
	}
	if a < b {
		return a, b
	}
	return b, a
}

// IDs returns every placed entity in lexicographic order.
func (c *Coordinates) IDs() []string {
	ids := make([]string, 0, len(c.Residues))
	for id := range c.Residues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy.
func (c *Coordinates) Clone() *Coordinates {
	out := &Coordinates{
		Prime:     c.Prime,
		Precision: c.Precision,
		Residues:  make(map[string]uint64, len(c.Residues)),
	}
	for id, x := range c.Residues {
		out.Residues[id] = x
	}
	if len(c.Digits) > 0 {
		out.Digits = make(map[string]int, len(c.Digits))
		for id, d := range c.Digits {
			out.Digits[id] = d
		}
	}
	return out
}
