// Package hensel raises the precision of a solved manifold one base-p digit
// at a time, separating unrelated entities that collided at low precision
// without disturbing the inlier structure the solver validated.
package hensel

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kittclouds/taxomine/pkg/graph"
	"github.com/kittclouds/taxomine/pkg/manifold"
	"github.com/kittclouds/taxomine/pkg/padic"
)

// Config for the refiner
type Config struct {
	Logger *zap.Logger
}

func DefaultConfig() Config {
	return Config{Logger: zap.NewNop()}
}

// Refiner lifts manifolds to higher precision
type Refiner struct {
	config Config
	log    *zap.Logger
}

func NewRefiner(cfg Config) *Refiner {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Refiner{config: cfg, log: log}
}

// Lift returns a new manifold at precision target. The input is not
// modified. When some entities cannot be extended the result is still
// returned, together with a *PartialLiftError naming them.
func (r *Refiner) Lift(m *manifold.LocalManifold, target int) (*manifold.LocalManifold, error) {
	if m == nil || m.Coordinates == nil {
		return nil, errors.New("hensel: nil manifold")
	}
	if target <= m.Precision {
		return nil, fmt.Errorf("%w: %d <= %d", ErrInvalidTarget, target, m.Precision)
	}
	if _, err := padic.Pow(m.Prime, target); err != nil {
		return nil, err
	}

	l := newLift(m, target)
	start := m.Precision
	for _, id := range l.order {
		start = min(start, l.coords.PrecisionOf(id))
	}
	for j := start; j < target; j++ {
		l.round(j)
	}
	out := l.finish()

	log := r.log.With(zap.Uint64("prime", m.Prime), zap.Int("target", target))
	if len(l.frozen) == 0 {
		log.Debug("lifted", zap.Int("entities", len(l.order)))
		return out, nil
	}
	log.Info("partial lift", zap.Int("entities", len(l.order)), zap.Int("lowConfidence", len(l.frozen)))
	return out, &PartialLiftError{Prime: m.Prime, Target: target, Reached: l.frozen}
}

type lift struct {
	src    *manifold.LocalManifold
	coords *manifold.Coordinates
	order  []string
	pairs  map[string][]manifold.InlierPair
	linked map[graph.PairKey]bool
	poly   padic.Poly
	energy manifold.Energy
	frozen map[string]int
}

func newLift(m *manifold.LocalManifold, target int) *lift {
	coords, _ := manifold.NewCoordinates(m.Prime, target)
	for id, x := range m.Coordinates.Residues {
		coords.Set(id, x, m.Coordinates.PrecisionOf(id))
	}

	order := coords.IDs()
	sort.SliceStable(order, func(i, j int) bool {
		return m.Centrality[order[i]] > m.Centrality[order[j]]
	})

	l := &lift{
		src:    m,
		coords: coords,
		order:  order,
		pairs:  make(map[string][]manifold.InlierPair),
		linked: make(map[graph.PairKey]bool, len(m.Pairs)),
		frozen: make(map[string]int),
	}
	for _, p := range m.Pairs {
		l.pairs[p.Parent] = append(l.pairs[p.Parent], p)
		l.pairs[p.Child] = append(l.pairs[p.Child], p)
		l.linked[p.Key()] = true
	}
	l.poly = fixedPolynomial(m, coords.Modulus())
	l.energy = l.score()
	return l
}

// fixedPolynomial re-expands the fitted polynomial modulo the target modulus.
// Its roots are the anchors' units at the solved precision, so new digits
// never move it.
func fixedPolynomial(m *manifold.LocalManifold, mod uint64) padic.Poly {
	roots := make([]uint64, 0, len(m.Anchors))
	for _, id := range m.Anchors {
		u, _ := m.Coordinates.Unit(id)
		roots = append(roots, u)
	}
	return padic.FromRoots(roots, mod)
}

func (l *lift) score() manifold.Energy {
	return manifold.ComputeEnergy(l.poly, l.coords, l.src.Centrality, l.src.HierarchyWeight)
}

// round appends digit j to every entity currently known to exactly j digits.
func (l *lift) round(j int) {
	p := l.coords.Prime
	step := padic.MustPow(p, j)
	var done []string

	for _, id := range l.order {
		if l.coords.PrecisionOf(id) != j {
			continue
		}
		x := l.coords.Residues[id]
		accepted := false
		for t := uint64(0); t < p; t++ {
			l.coords.Set(id, x+t*step, j+1)
			if next, ok := l.admissible(id, x, done); ok {
				l.energy = next
				accepted = true
				break
			}
		}
		if !accepted {
			l.coords.Set(id, x, j)
			l.frozen[id] = j
			continue
		}
		done = append(done, id)
	}
}

// admissible checks the candidate digit just written for id: inlier pairs
// keep their proximity, id no longer collides with an unrelated entity
// lifted earlier in this round, and the energy does not grow. The
// polynomial is fixed, so only a level change can move the energy.
func (l *lift) admissible(id string, prev uint64, done []string) (manifold.Energy, bool) {
	for _, p := range l.pairs[id] {
		if l.coords.Proximity(p.Parent, p.Child) < l.src.Tolerance {
			return l.energy, false
		}
	}

	x := l.coords.Residues[id]
	for _, other := range done {
		if l.coords.Residues[other] == x && !l.linked[graph.NewPairKey(id, other)] {
			return l.energy, false
		}
	}

	// only a zero residue can change level
	if prev != 0 {
		return l.energy, true
	}
	next := l.score()
	if next.Total > l.energy.Total {
		return l.energy, false
	}
	return next, true
}

func (l *lift) finish() *manifold.LocalManifold {
	m := l.src
	pairs := make([]manifold.InlierPair, len(m.Pairs))
	for i, p := range m.Pairs {
		p.Proximity = l.coords.Proximity(p.Parent, p.Child)
		pairs[i] = p
	}

	var low map[string]int
	if len(l.frozen) > 0 {
		low = make(map[string]int, len(l.frozen))
		for id, d := range l.frozen {
			low[id] = d
		}
	}

	return manifold.Finish(&manifold.LocalManifold{
		Prime:           m.Prime,
		Precision:       l.coords.Precision,
		Tolerance:       m.Tolerance,
		HierarchyWeight: m.HierarchyWeight,
		Coordinates:     l.coords,
		Polynomial:      l.poly,
		Anchors:         append([]string(nil), m.Anchors...),
		Inliers:         append([]string(nil), m.Inliers...),
		Pairs:           pairs,
		Trial:           m.Trial,
		Centrality:      m.Centrality,
		LowConfidence:   low,
	})
}
