package sheaf

import (
	"fmt"
	"sort"

	"github.com/kittclouds/taxomine/pkg/adelic"
	"github.com/kittclouds/taxomine/pkg/graph"
	"github.com/kittclouds/taxomine/pkg/manifold"
)

// GlobalSection is a maximal run of adjacent windows whose overlaps agree.
type GlobalSection struct {
	Index   int       `json:"index"`
	Windows []*Window `json:"windows"`

	// Residues holds the merged assignment per prime. Entities shared by
	// several windows keep the value of the first window that placed them.
	Residues  map[uint64]map[string]uint64 `json:"residues"`
	Composite map[string]uint64            `json:"composite,omitempty"`
	// Levels and Pairs come from each window's primary prime.
	Levels     map[string]int        `json:"levels"`
	Pairs      []manifold.InlierPair `json:"pairs"`
	Centrality map[string]float64    `json:"centrality"`

	Energy              float64            `json:"energy"`
	LipschitzViolations int                `json:"lipschitzViolations"`
	Consistency         float64            `json:"consistency"`
	Excluded            []adelic.Exclusion `json:"excluded,omitempty"`
	LowConfidence       map[string]int     `json:"lowConfidence,omitempty"`

	pairKeys    map[graph.PairKey]bool
	excludedIDs map[string]bool
	adelicCount int
}

func newSection(index int, w *Window, primes []uint64, centrality map[string]float64) *GlobalSection {
	s := &GlobalSection{
		Index:       index,
		Residues:    make(map[uint64]map[string]uint64),
		Levels:      make(map[string]int),
		Centrality:  make(map[string]float64),
		pairKeys:    make(map[graph.PairKey]bool),
		excludedIDs: make(map[string]bool),
	}
	s.glue(w, primes, centrality)
	return s
}

// glue extends the section with w. Existing values always win.
func (s *GlobalSection) glue(w *Window, primes []uint64, centrality map[string]float64) {
	s.Windows = append(s.Windows, w)

	for p, coords := range w.Coordinates(primes) {
		dst := s.Residues[p]
		if dst == nil {
			dst = make(map[string]uint64)
			s.Residues[p] = dst
		}
		for id, x := range coords.Residues {
			if _, ok := dst[id]; !ok {
				dst[id] = x
			}
		}
		if p != w.Primary {
			continue
		}
		for id := range coords.Residues {
			if _, ok := s.Levels[id]; !ok {
				s.Levels[id] = coords.Level(id)
				s.Centrality[id] = centrality[id]
			}
		}
	}

	if w.Adelic != nil {
		if s.Composite == nil {
			s.Composite = make(map[string]uint64)
		}
		for id, x := range w.Adelic.Residues {
			if _, ok := s.Composite[id]; !ok {
				s.Composite[id] = x
			}
		}
		for _, e := range w.Adelic.Excluded {
			if !s.excludedIDs[e.Entity] {
				s.excludedIDs[e.Entity] = true
				s.Excluded = append(s.Excluded, e)
			}
		}
		s.Consistency = (s.Consistency*float64(s.adelicCount) + w.Adelic.Consistency) / float64(s.adelicCount+1)
		s.adelicCount++
	}

	for _, p := range w.Pairs() {
		key := p.Key()
		if s.pairKeys[key] {
			continue
		}
		s.pairKeys[key] = true
		s.Pairs = append(s.Pairs, p)
	}
	sort.Slice(s.Pairs, func(i, j int) bool {
		a, b := s.Pairs[i].Key(), s.Pairs[j].Key()
		if a.Lo != b.Lo {
			return a.Lo < b.Lo
		}
		return a.Hi < b.Hi
	})

	m := w.Manifolds[w.Primary]
	n := float64(len(s.Windows))
	s.Energy = (s.Energy*(n-1) + m.Energy.Total) / n
	for _, wm := range w.Manifolds {
		s.LipschitzViolations += wm.LipschitzViolations
	}
	for _, reached := range w.Partial {
		for id, d := range reached {
			if s.LowConfidence == nil {
				s.LowConfidence = make(map[string]int)
			}
			if prev, ok := s.LowConfidence[id]; !ok || d < prev {
				s.LowConfidence[id] = d
			}
		}
	}
}

// Entities returns every entity with a level in the section, sorted.
func (s *GlobalSection) Entities() []string {
	ids := make([]string, 0, len(s.Levels))
	for id := range s.Levels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WindowIndexes lists the glued windows in stream order.
func (s *GlobalSection) WindowIndexes() []int {
	out := make([]int, len(s.Windows))
	for i, w := range s.Windows {
		out[i] = w.Index
	}
	return out
}

// DisagreementKind names what differed across an overlap.
type DisagreementKind string

const (
	LevelMismatch     DisagreementKind = "level"
	ProximityMismatch DisagreementKind = "proximity"
	// NoCommonPrime: the windows share entities but no prime resolved in both.
	NoCommonPrime DisagreementKind = "coverage"
)

// Disagreement is one failed overlap check. For level mismatches Other is
// empty.
type Disagreement struct {
	Kind   DisagreementKind `json:"kind"`
	Prime  uint64           `json:"prime,omitempty"`
	Entity string           `json:"entity"`
	Other  string           `json:"other,omitempty"`
	A      int              `json:"a"`
	B      int              `json:"b"`
}

func (d Disagreement) String() string {
	if d.Other == "" {
		return fmt.Sprintf("%s p=%d %s: %d != %d", d.Kind, d.Prime, d.Entity, d.A, d.B)
	}
	return fmt.Sprintf("%s p=%d (%s, %s): %d != %d", d.Kind, d.Prime, d.Entity, d.Other, d.A, d.B)
}

// LogicCut records a failed overlap between two adjacent windows. It is a
// structural boundary, not an error.
type LogicCut struct {
	Before        int            `json:"before"`
	After         int            `json:"after"`
	Disagreements []Disagreement `json:"disagreements"`
}

// Verify compares the overlap of two adjacent windows. For every prime that
// resolved in both, each shared entity must sit at the same level and each
// shared pair must keep the same relation, the proximity clipped one digit
// below the shallower endpoint. An empty overlap agrees trivially.
func Verify(a, b *Window, primes []uint64, tolerance int) []Disagreement {
	va, vb := a.Coordinates(primes), b.Coordinates(primes)

	var diffs []Disagreement
	common := 0
	for _, p := range primes {
		ca, okA := va[p]
		cb, okB := vb[p]
		if !okA || !okB {
			continue
		}
		common++

		var shared []string
		for _, id := range ca.IDs() {
			if cb.Has(id) {
				shared = append(shared, id)
			}
		}

		for _, id := range shared {
			la, lb := ca.Level(id), cb.Level(id)
			if abs(la-lb) > tolerance {
				diffs = append(diffs, Disagreement{Kind: LevelMismatch, Prime: p, Entity: id, A: la, B: lb})
			}
		}
		for i, x := range shared {
			for _, y := range shared[i+1:] {
				ra, rb := relation(ca, x, y), relation(cb, x, y)
				if abs(ra-rb) > tolerance {
					diffs = append(diffs, Disagreement{Kind: ProximityMismatch, Prime: p, Entity: x, Other: y, A: ra, B: rb})
				}
			}
		}
	}

	if common == 0 {
		if id, ok := firstShared(a.Entities, b.Entities); ok {
			diffs = append(diffs, Disagreement{Kind: NoCommonPrime, Entity: id})
		}
	}
	return diffs
}

func relation(c *manifold.Coordinates, x, y string) int {
	return min(c.Proximity(x, y), min(c.Level(x), c.Level(y))+1)
}

func firstShared(a, b []string) (string, bool) {
	set := make(map[string]bool, len(b))
	for _, id := range b {
		set[id] = true
	}
	for _, id := range a {
		if set[id] {
			return id, true
		}
	}
	return "", false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
