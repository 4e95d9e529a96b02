package solver

import (
	"math/rand/v2"

	"github.com/kittclouds/taxomine/pkg/graph"
	"github.com/kittclouds/taxomine/pkg/manifold"
	"github.com/kittclouds/taxomine/pkg/padic"
)

// trialer holds the read-only state shared by all trials.
type trialer struct {
	g      *graph.RelationGraph
	cfg    Config
	ranked []string
	params manifold.Params
}

func newTrialer(g *graph.RelationGraph, cfg Config) *trialer {
	return &trialer{
		g:      g,
		cfg:    cfg,
		ranked: g.Ranked(),
		params: manifold.Params{
			Tolerance:       cfg.Tolerance,
			HierarchyWeight: cfg.HierarchyWeight,
		},
	}
}

type placement struct {
	level    int
	unit     uint64
	children int
}

// run executes trial t. Trial 0 is the deterministic clustering heuristic;
// later trials perturb the ranking, the parent choice and the basis.
func (t *trialer) run(trial int) *manifold.LocalManifold {
	rng := rand.New(rand.NewPCG(t.cfg.Seed, uint64(trial)))

	order := append([]string(nil), t.ranked...)
	if trial > 0 {
		for i := 0; i+1 < len(order); i++ {
			if rng.Float64() < t.cfg.MutationRate {
				order[i], order[i+1] = order[i+1], order[i]
			}
		}
	}

	coords, roots := t.place(order, trial, rng)
	anchors := t.basis(order, roots, trial, rng)

	m := manifold.Build(coords, anchors, t.g, t.params)
	m.Trial = trial
	return m
}

// place walks the ranking and attaches every entity below an already placed
// neighbour, so related entities share a residue prefix. Entities without a
// placed neighbour open a new root branch.
func (t *trialer) place(order []string, trial int, rng *rand.Rand) (*manifold.Coordinates, []string) {
	p := t.cfg.Prime
	k := t.cfg.Precision
	mod := padic.MustPow(p, k)
	branches := p - 1
	if branches == 0 {
		branches = 1
	}

	coords, _ := manifold.NewCoordinates(p, k)
	placed := make(map[string]*placement, len(order))
	var roots []string

	for _, id := range order {
		var candidates []string
		for _, n := range t.g.Neighbors(id) {
			if placed[n] != nil {
				candidates = append(candidates, n)
			}
		}

		if len(candidates) == 0 {
			digit := 1 + uint64(len(roots))%branches
			placed[id] = &placement{level: 0, unit: digit % mod}
			coords.Place(id, 0, digit)
			roots = append(roots, id)
			continue
		}

		var parentID string
		if trial == 0 {
			parentID = t.strongest(id, candidates)
		} else {
			parentID = t.draw(id, candidates, rng)
		}
		parent := placed[parentID]
		sibling := 1 + uint64(parent.children)%branches
		parent.children++

		level := parent.level + 1
		unit := parent.unit
		if level < k {
			step := padic.MulMod(sibling, padic.MustPow(p, level), mod)
			unit = padic.AddMod(unit, step, mod)
		}
		placed[id] = &placement{level: level, unit: unit}
		coords.Place(id, level, unit)
	}
	return coords, roots
}

// strongest picks the heaviest relation, then the more central neighbour,
// then the smaller ID (candidates arrive sorted).
func (t *trialer) strongest(id string, candidates []string) string {
	best := candidates[0]
	for _, c := range candidates[1:] {
		wc, wb := t.g.Weight(id, c), t.g.Weight(id, best)
		if wc > wb || (wc == wb && t.g.Centrality(c) > t.g.Centrality(best)) {
			best = c
		}
	}
	return best
}

// draw picks a neighbour with probability proportional to relation weight.
func (t *trialer) draw(id string, candidates []string, rng *rand.Rand) string {
	total := 0.0
	for _, c := range candidates {
		total += t.g.Weight(id, c)
	}
	if total <= 0 {
		return candidates[rng.IntN(len(candidates))]
	}
	r := rng.Float64() * total
	for _, c := range candidates {
		r -= t.g.Weight(id, c)
		if r < 0 {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

// basis chooses min(Degree, n) anchors for the fitted polynomial. Trial 0
// takes the roots first, then the ranking; other trials sample without
// replacement weighted by centrality + 1.
func (t *trialer) basis(order, roots []string, trial int, rng *rand.Rand) []string {
	size := min(t.cfg.Degree, len(order))

	if trial == 0 {
		anchors := make([]string, 0, size)
		seen := make(map[string]bool, size)
		for _, list := range [][]string{roots, order} {
			for _, id := range list {
				if len(anchors) == size {
					return anchors
				}
				if !seen[id] {
					seen[id] = true
					anchors = append(anchors, id)
				}
			}
		}
		return anchors
	}

	pool := append([]string(nil), t.ranked...)
	anchors := make([]string, 0, size)
	for len(anchors) < size {
		total := 0.0
		for _, id := range pool {
			total += t.g.Centrality(id) + 1
		}
		r := rng.Float64() * total
		pick := len(pool) - 1
		for i, id := range pool {
			r -= t.g.Centrality(id) + 1
			if r < 0 {
				pick = i
				break
			}
		}
		anchors = append(anchors, pool[pick])
		pool = append(pool[:pick], pool[pick+1:]...)
	}
	return anchors
}
