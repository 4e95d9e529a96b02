package sheaf

import (
	"context"
	"errors"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/kittclouds/taxomine/pkg/adelic"
	"github.com/kittclouds/taxomine/pkg/graph"
	"github.com/kittclouds/taxomine/pkg/hensel"
	"github.com/kittclouds/taxomine/pkg/manifold"
	"github.com/kittclouds/taxomine/pkg/solver"
)

// Span is a half-open range of atom indexes.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Partition splits n atoms into windows of size atoms, each sharing the
// given fraction with its successor. The last window always ends at n.
func Partition(n, size int, overlap float64) []Span {
	if n <= 0 || size < 1 {
		return nil
	}
	step := int(math.Round(float64(size) * (1 - overlap)))
	if step < 1 {
		step = 1
	}
	var spans []Span
	for start := 0; ; start += step {
		end := min(start+size, n)
		spans = append(spans, Span{Start: start, End: end})
		if end == n {
			return spans
		}
	}
}

// Window is the local section computed for one span of the stream.
type Window struct {
	Index    int      `json:"index"`
	Span     Span     `json:"span"`
	Entities []string `json:"entities"`

	// Manifolds holds every prime that resolved, lifted when lifting is on.
	Manifolds map[uint64]*manifold.LocalManifold `json:"manifolds"`
	// Primary is the first configured prime that resolved.
	Primary uint64 `json:"primary"`
	// Adelic is set when two or more primes resolved.
	Adelic *adelic.Result `json:"adelic,omitempty"`

	// Unresolved lists primes whose solve found no structure.
	Unresolved []uint64 `json:"unresolved,omitempty"`
	// Partial lists, per prime, entities the refiner could not lift.
	Partial map[uint64]map[string]int `json:"partial,omitempty"`

	projected map[uint64]*manifold.Coordinates
}

// Resolved reports whether any prime found structure in the window.
func (w *Window) Resolved() bool {
	return len(w.Manifolds) > 0
}

// Coordinates returns the per-prime coordinates used for overlap checks.
// After adelic integration they are the projections of the composite
// residues, so excluded entities are absent.
func (w *Window) Coordinates(primes []uint64) map[uint64]*manifold.Coordinates {
	out := make(map[uint64]*manifold.Coordinates, len(w.Manifolds))
	for _, p := range primes {
		m, ok := w.Manifolds[p]
		if !ok {
			continue
		}
		if coords, ok := w.projected[p]; ok {
			out[p] = coords
			continue
		}
		out[p] = m.Coordinates
	}
	return out
}

// integrate merges the resolved primes and projects the composite back onto
// each of them.
func (w *Window) integrate() error {
	res, err := adelic.Integrate(w.Manifolds)
	if err != nil {
		return err
	}
	projected := make(map[uint64]*manifold.Coordinates, len(res.Primes))
	for _, p := range res.Primes {
		coords, err := res.Project(p)
		if err != nil {
			return err
		}
		projected[p] = coords
	}
	w.Adelic = res
	w.projected = projected
	return nil
}

// Pairs returns the window's accepted inlier pairs.
func (w *Window) Pairs() []manifold.InlierPair {
	if w.Adelic != nil {
		return w.Adelic.Pairs
	}
	if m := w.Manifolds[w.Primary]; m != nil {
		return m.Pairs
	}
	return nil
}

// solveWindow runs the kernel for every prime, then the refiner and the
// integrator. Only contract violations are returned as errors.
func (s *scanner) solveWindow(ctx context.Context, index int, span Span) (*Window, error) {
	atoms := s.stream.Atoms[span.Start:span.End]
	seen := make(map[string]bool)
	for _, a := range atoms {
		seen[a.A] = true
		seen[a.B] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entities := make([]graph.Entity, len(ids))
	for i, id := range ids {
		entities[i] = graph.Entity{ID: id, Centrality: s.centrality[id]}
	}
	problem := solver.Problem{Entities: entities, Atoms: atoms}

	w := &Window{
		Index:     index,
		Span:      span,
		Entities:  ids,
		Manifolds: make(map[uint64]*manifold.LocalManifold),
	}
	log := s.log.With(zap.Int("window", index))
	kernel := s.cfg.kernel()
	refiner := hensel.NewRefiner(hensel.Config{Logger: log})

	for _, p := range s.cfg.Primes {
		sc := s.cfg.Solver
		sc.Prime = p
		sc.Logger = log

		m, err := kernel.Solve(ctx, problem, sc)
		if errors.Is(err, solver.ErrUnresolved) {
			w.Unresolved = append(w.Unresolved, p)
			continue
		}
		if err != nil {
			return nil, err
		}

		if s.cfg.TargetPrecision > 0 {
			lifted, err := refiner.Lift(m, s.cfg.TargetPrecision)
			var partial *hensel.PartialLiftError
			switch {
			case errors.As(err, &partial):
				if w.Partial == nil {
					w.Partial = make(map[uint64]map[string]int)
				}
				w.Partial[p] = partial.Reached
			case err != nil:
				return nil, err
			}
			m = lifted
		}

		if w.Primary == 0 {
			w.Primary = p
		}
		w.Manifolds[p] = m
	}

	if len(w.Manifolds) > 1 {
		if err := w.integrate(); err != nil {
			return nil, err
		}
	}

	log.Debug("window solved",
		zap.Int("atoms", len(atoms)),
		zap.Int("entities", len(ids)),
		zap.Int("resolved", len(w.Manifolds)),
		zap.Int("unresolved", len(w.Unresolved)))
	return w, nil
}
