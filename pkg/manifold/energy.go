package manifold

import (
	"sort"

	"github.com/kittclouds/taxomine/pkg/padic"
)

// Energy scores a fit; lower is better.
//
// Decay is the weighted mean of s(|a_n|_p) over the Mahler coefficients a_n
// of the fitted polynomial, with s(z) = z/(1+z) and weight n+1, so late
// coefficients that fail to shrink cost more. It lies in (0, 1): a_0 is a
// product of units and never vanishes. Violations counts pairs where the more
// central entity sits at a deeper level; each costs HierarchyWeight.
type Energy struct {
	Decay      float64 `json:"decay"`
	Violations int     `json:"violations"`
	Total      float64 `json:"total"`
}

// ComputeEnergy scores poly and the level structure of coords.
func ComputeEnergy(poly padic.Poly, coords *Coordinates, centrality map[string]float64, hierarchyWeight float64) Energy {
	e := Energy{
		Decay:      MahlerDecay(poly, coords.Prime, coords.Precision),
		Violations: HierarchyViolations(coords, centrality),
	}
	e.Total = e.Decay + hierarchyWeight*float64(e.Violations)
	return e
}

// MahlerDecay implements the Decay term of Energy.
func MahlerDecay(poly padic.Poly, prime uint64, precision int) float64 {
	coeffs := poly.Mahler()
	if len(coeffs) == 0 {
		return 0
	}
	var num, den float64
	for n, a := range coeffs {
		z := padic.Norm(a, prime, precision)
		w := float64(n + 1)
		num += w * z / (1 + z)
		den += w
	}
	return num / den
}

// HierarchyViolations counts ordered pairs (A, B) with
// centrality(A) > centrality(B) but level(A) > level(B).
func HierarchyViolations(coords *Coordinates, centrality map[string]float64) int {
	type entry struct {
		c     float64
		level int
	}
	entries := make([]entry, 0, len(coords.Residues))
	for id := range coords.Residues {
		entries = append(entries, entry{c: centrality[id], level: coords.Level(id)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].c > entries[j].c })

	count := 0
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if entries[i].c > entries[j].c && entries[i].level > entries[j].level {
				count++
			}
		}
	}
	return count
}

// LipschitzAudit counts inlier pairs with |P(u_a) - P(u_b)|_p > |u_a - u_b|_p,
// compared over the digits known for both units. An integral polynomial never
// violates this, so a non-zero count means the coordinates or the fit are
// corrupt.
func LipschitzAudit(poly padic.Poly, coords *Coordinates, pairs []InlierPair) int {
	violations := 0
	for _, p := range pairs {
		ua, da := coords.Unit(p.Parent)
		ub, db := coords.Unit(p.Child)
		digits := min(da, db)
		if digits == 0 {
			continue
		}
		m := padic.MustPow(coords.Prime, digits)
		dx := padic.Valuation(padic.SubMod(ua%m, ub%m, m), coords.Prime, digits)
		dy := padic.Valuation(padic.SubMod(poly.Eval(ua)%m, poly.Eval(ub)%m, m), coords.Prime, digits)
		if dy < dx {
			violations++
		}
	}
	return violations
}
