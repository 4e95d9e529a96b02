package hensel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrPartialLift is matched by *PartialLiftError.
	ErrPartialLift = errors.New("hensel: partial lift")
	// ErrInvalidTarget rejects targets that do not raise the precision.
	ErrInvalidTarget = errors.New("hensel: target precision must exceed current precision")
)

// PartialLiftError reports entities that stopped short of the target
// precision. The manifold returned alongside it is still usable; these
// entities are flagged low-confidence in it.
type PartialLiftError struct {
	Prime  uint64
	Target int
	// Reached maps each entity to the number of digits it kept.
	Reached map[string]int
}

func (e *PartialLiftError) Error() string {
	ids := make([]string, 0, len(e.Reached))
	for id := range e.Reached {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s@%d", id, e.Reached[id])
	}
	return fmt.Sprintf("hensel: p=%d: %d entities below precision %d: %s",
		e.Prime, len(ids), e.Target, strings.Join(parts, ", "))
}

func (e *PartialLiftError) Unwrap() error {
	return ErrPartialLift
}
