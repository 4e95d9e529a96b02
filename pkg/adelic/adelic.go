// Package adelic merges manifolds solved independently for several primes
// over the same window into one composite residue per entity, via the
// Chinese Remainder Theorem, and measures how far the primes agree.
package adelic

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"

	"github.com/kittclouds/taxomine/pkg/graph"
	"github.com/kittclouds/taxomine/pkg/manifold"
	"github.com/kittclouds/taxomine/pkg/padic"
)

var (
	ErrNoManifolds = errors.New("adelic: no manifolds to integrate")
	// ErrNonCoprime is returned when two fields share a factor.
	ErrNonCoprime = padic.ErrNonCoprime
	// ErrPrimeMismatch means a manifold is filed under the wrong prime.
	ErrPrimeMismatch = errors.New("adelic: manifold prime does not match its key")
)

// Reason explains why an entity is left out of the merged assignment.
type Reason string

const (
	// InconsistentResidue: the primes disagree on which endpoint of one of the
	// entity's inlier pairs is the parent.
	InconsistentResidue Reason = "InconsistentResidue"
	// MissingResidue: at least one prime has no coordinate for the entity.
	MissingResidue Reason = "MissingResidue"
)

type Exclusion struct {
	Entity string `json:"entity"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Result is the merged assignment across primes.
type Result struct {
	Primes     []uint64          `json:"primes"`
	Precisions map[uint64]int    `json:"precisions"`
	Modulus    uint64            `json:"modulus"`
	Residues   map[string]uint64 `json:"residues"`
	// Consistency is the fraction of entities present in every field whose
	// structure agrees across all of them.
	Consistency float64               `json:"consistency"`
	Excluded    []Exclusion           `json:"excluded,omitempty"`
	Pairs       []manifold.InlierPair `json:"pairs"`

	digits map[uint64]map[string]int
}

// Integrate combines per-prime manifolds of the same window. Entities that
// cannot be reconstructed are excluded and reported; they never block the
// rest of the merge.
func Integrate(manifolds map[uint64]*manifold.LocalManifold) (*Result, error) {
	primes, modulus, err := validate(manifolds)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Primes:     primes,
		Precisions: make(map[uint64]int, len(primes)),
		Modulus:    modulus,
		Residues:   make(map[string]uint64),
		digits:     make(map[uint64]map[string]int, len(primes)),
	}
	moduli := make([]uint64, len(primes))
	pairIdx := make([]map[graph.PairKey]manifold.InlierPair, len(primes))
	for i, p := range primes {
		m := manifolds[p]
		res.Precisions[p] = m.Precision
		res.digits[p] = m.Coordinates.Digits
		moduli[i] = m.Coordinates.Modulus()
		pairIdx[i] = m.PairIndex()
	}

	var present []string
	for _, id := range allEntities(manifolds, primes) {
		if missing := missingFrom(manifolds, primes, id); missing != 0 {
			res.Excluded = append(res.Excluded, Exclusion{
				Entity: id,
				Reason: MissingResidue,
				Detail: fmt.Sprintf("no residue for p=%d", missing),
			})
			continue
		}
		present = append(present, id)
	}

	// Pair keys seen in more than one field, with the disagreeing ones marked.
	conflicted := make(map[string]string)
	for key, parents := range pairParents(pairIdx) {
		if len(parents) < 2 {
			continue
		}
		for _, parent := range parents[1:] {
			if parent != parents[0] {
				detail := fmt.Sprintf("direction of (%s, %s) differs across primes", key.Lo, key.Hi)
				for _, id := range []string{key.Lo, key.Hi} {
					if prev, ok := conflicted[id]; !ok || detail < prev {
						conflicted[id] = detail
					}
				}
				break
			}
		}
	}

	consistent := make(map[string]bool, len(present))
	residues := make([]uint64, len(primes))
	for _, id := range present {
		if detail, bad := conflicted[id]; bad {
			res.Excluded = append(res.Excluded, Exclusion{Entity: id, Reason: InconsistentResidue, Detail: detail})
			continue
		}
		for i, p := range primes {
			residues[i] = manifolds[p].Coordinates.Residues[id]
		}
		x, _, err := padic.CRT(residues, moduli)
		if err != nil {
			return nil, fmt.Errorf("adelic: %s: %w", id, err)
		}
		res.Residues[id] = x
		consistent[id] = true
	}

	if len(present) > 0 {
		res.Consistency = float64(len(consistent)) / float64(len(present))
	}

	seen := make(map[graph.PairKey]bool)
	for _, idx := range pairIdx {
		for key, pair := range idx {
			if seen[key] || !consistent[key.Lo] || !consistent[key.Hi] {
				continue
			}
			seen[key] = true
			res.Pairs = append(res.Pairs, pair)
		}
	}
	sort.Slice(res.Pairs, func(i, j int) bool {
		a, b := res.Pairs[i].Key(), res.Pairs[j].Key()
		if a.Lo != b.Lo {
			return a.Lo < b.Lo
		}
		return a.Hi < b.Hi
	})
	sort.Slice(res.Excluded, func(i, j int) bool { return res.Excluded[i].Entity < res.Excluded[j].Entity })
	return res, nil
}

// Project recovers prime p's coordinates from the composite residues.
func (r *Result) Project(p uint64) (*manifold.Coordinates, error) {
	k, ok := r.Precisions[p]
	if !ok {
		return nil, fmt.Errorf("adelic: prime %d not integrated", p)
	}
	coords, err := manifold.NewCoordinates(p, k)
	if err != nil {
		return nil, err
	}
	mod := coords.Modulus()
	for id, x := range r.Residues {
		d := k
		if dd, ok := r.digits[p][id]; ok {
			d = dd
		}
		coords.Set(id, x%mod, d)
	}
	return coords, nil
}

// IsExcluded reports whether id was left out of the merge.
func (r *Result) IsExcluded(id string) bool {
	for _, e := range r.Excluded {
		if e.Entity == id {
			return true
		}
	}
	return false
}

func validate(manifolds map[uint64]*manifold.LocalManifold) ([]uint64, uint64, error) {
	if len(manifolds) == 0 {
		return nil, 0, ErrNoManifolds
	}
	primes := make([]uint64, 0, len(manifolds))
	for p, m := range manifolds {
		if m == nil || m.Coordinates == nil {
			return nil, 0, fmt.Errorf("adelic: nil manifold for p=%d", p)
		}
		if m.Prime != p {
			return nil, 0, fmt.Errorf("%w: key %d, manifold %d", ErrPrimeMismatch, p, m.Prime)
		}
		if !padic.IsPrime(p) {
			return nil, 0, fmt.Errorf("adelic: %d: %w", p, padic.ErrNotPrime)
		}
		primes = append(primes, p)
	}
	sort.Slice(primes, func(i, j int) bool { return primes[i] < primes[j] })

	total := uint64(1)
	for _, p := range primes {
		hi, lo := bits.Mul64(total, manifolds[p].Coordinates.Modulus())
		if hi != 0 {
			return nil, 0, fmt.Errorf("adelic: composite modulus: %w", padic.ErrPrecisionOverflow)
		}
		total = lo
	}
	return primes, total, nil
}

func allEntities(manifolds map[uint64]*manifold.LocalManifold, primes []uint64) []string {
	set := make(map[string]bool)
	for _, p := range primes {
		for id := range manifolds[p].Coordinates.Residues {
			set[id] = true
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// missingFrom returns the first prime lacking id, or 0.
func missingFrom(manifolds map[uint64]*manifold.LocalManifold, primes []uint64, id string) uint64 {
	for _, p := range primes {
		if !manifolds[p].Coordinates.Has(id) {
			return p
		}
	}
	return 0
}

func pairParents(idx []map[graph.PairKey]manifold.InlierPair) map[graph.PairKey][]string {
	out := make(map[graph.PairKey][]string)
	for _, pairs := range idx {
		for key, p := range pairs {
			out[key] = append(out[key], p.Parent)
		}
	}
	return out
}
