// Package manifold defines the LocalManifold, the result of fitting one prime
// field to one window of relations, together with the scoring functions
// shared by the solver and the Hensel refiner.
package manifold

import (
	"sort"

	"github.com/kittclouds/taxomine/pkg/graph"
	"github.com/kittclouds/taxomine/pkg/padic"
)

// InlierPair is a relation accepted as structural signal, oriented by the
// fitted coordinates.
type InlierPair struct {
	Parent    string  `json:"parent"`
	Child     string  `json:"child"`
	Weight    float64 `json:"weight"`
	Proximity int     `json:"proximity"`
}

// Key returns the unordered pair this inlier was derived from.
func (p InlierPair) Key() graph.PairKey {
	return graph.NewPairKey(p.Parent, p.Child)
}

// LocalManifold is one prime's fit for one window. It is never mutated after
// it is returned; refinement builds a new value.
type LocalManifold struct {
	Prime           uint64  `json:"prime"`
	Precision       int     `json:"precision"`
	Tolerance       int     `json:"tolerance"`
	HierarchyWeight float64 `json:"hierarchyWeight"`

	Coordinates *Coordinates `json:"coordinates"`
	Polynomial  padic.Poly   `json:"polynomial"`
	Mahler      []uint64     `json:"mahler"`
	NewtonSlope float64      `json:"newtonSlope"`

	Anchors []string     `json:"anchors"`
	Inliers []string     `json:"inliers"`
	Pairs   []InlierPair `json:"pairs"`

	Energy              Energy `json:"energy"`
	LipschitzViolations int    `json:"lipschitzViolations"`
	Trial               int    `json:"trial"`

	Centrality map[string]float64 `json:"centrality"`
	// LowConfidence maps entities that stopped short of Precision to the
	// number of digits they reached.
	LowConfidence map[string]int `json:"lowConfidence,omitempty"`
}

// Params are the scoring knobs carried by every manifold.
type Params struct {
	Tolerance       int
	HierarchyWeight float64
}

// Build fits the anchor polynomial over coords, classifies inliers and
// inlier pairs against g and scores the result.
func Build(coords *Coordinates, anchors []string, g *graph.RelationGraph, params Params) *LocalManifold {
	poly := FitPolynomial(coords, anchors)

	inliers := Classify(coords, poly, anchors, params.Tolerance)
	inlierSet := make(map[string]bool, len(inliers))
	for _, id := range inliers {
		inlierSet[id] = true
	}

	centrality := make(map[string]float64, len(coords.Residues))
	for id := range coords.Residues {
		centrality[id] = g.Centrality(id)
	}

	var pairs []InlierPair
	for _, key := range g.Pairs() {
		if !inlierSet[key.Lo] || !inlierSet[key.Hi] {
			continue
		}
		prox := coords.Proximity(key.Lo, key.Hi)
		if prox < params.Tolerance {
			continue
		}
		parent, child := coords.Orient(key.Lo, key.Hi, centrality)
		pairs = append(pairs, InlierPair{
			Parent:    parent,
			Child:     child,
			Weight:    g.Weight(key.Lo, key.Hi),
			Proximity: prox,
		})
	}

	return Finish(&LocalManifold{
		Prime:           coords.Prime,
		Precision:       coords.Precision,
		Tolerance:       params.Tolerance,
		HierarchyWeight: params.HierarchyWeight,
		Coordinates:     coords,
		Polynomial:      poly,
		Anchors:         append([]string(nil), anchors...),
		Inliers:         inliers,
		Pairs:           pairs,
		Centrality:      centrality,
	})
}

// Finish recomputes everything derived from the coordinates and polynomial:
// Mahler coefficients, Newton slope, energy and the Lipschitz audit.
func Finish(m *LocalManifold) *LocalManifold {
	m.Mahler = m.Polynomial.Mahler()
	m.NewtonSlope = padic.NewtonSlope(m.Mahler, m.Prime, m.Precision)
	m.Energy = ComputeEnergy(m.Polynomial, m.Coordinates, m.Centrality, m.HierarchyWeight)
	m.LipschitzViolations = LipschitzAudit(m.Polynomial, m.Coordinates, m.Pairs)
	return m
}

// FitPolynomial returns prod(u - u_anchor) over the anchors' unit parts.
func FitPolynomial(coords *Coordinates, anchors []string) padic.Poly {
	roots := make([]uint64, 0, len(anchors))
	for _, id := range anchors {
		u, _ := coords.Unit(id)
		roots = append(roots, u)
	}
	return padic.FromRoots(roots, coords.Modulus())
}

// Classify returns the sorted inlier set: anchors, plus every entity whose
// unit u satisfies v_p(P(u)) >= tolerance over its known digits.
func Classify(coords *Coordinates, poly padic.Poly, anchors []string, tolerance int) []string {
	anchorSet := make(map[string]bool, len(anchors))
	for _, id := range anchors {
		anchorSet[id] = true
	}
	var inliers []string
	for _, id := range coords.IDs() {
		if anchorSet[id] || residueValuation(coords, poly, id) >= tolerance {
			inliers = append(inliers, id)
		}
	}
	return inliers
}

func residueValuation(coords *Coordinates, poly padic.Poly, id string) int {
	u, digits := coords.Unit(id)
	if digits == 0 {
		return 0
	}
	y := poly.Eval(u) % padic.MustPow(coords.Prime, digits)
	return padic.Valuation(y, coords.Prime, digits)
}

// IsInlier reports whether id belongs to the inlier set.
func (m *LocalManifold) IsInlier(id string) bool {
	i := sort.SearchStrings(m.Inliers, id)
	return i < len(m.Inliers) && m.Inliers[i] == id
}

// PairIndex maps each inlier pair's unordered key to the pair.
func (m *LocalManifold) PairIndex() map[graph.PairKey]InlierPair {
	out := make(map[graph.PairKey]InlierPair, len(m.Pairs))
	for _, p := range m.Pairs {
		out[p.Key()] = p
	}
	return out
}

// Entities returns every entity with a coordinate, sorted.
func (m *LocalManifold) Entities() []string {
	return m.Coordinates.IDs()
}

// Level is a shorthand for the entity's coordinate level.
func (m *LocalManifold) Level(id string) int {
	return m.Coordinates.Level(id)
}
