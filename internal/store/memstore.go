package store

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory implementation of Storer for testing.
type MemStore struct {
	mu       sync.RWMutex
	runs     map[string]*Run
	sections map[string]*Section
	nodes    map[string][]*Node
	cuts     map[string][]*Cut
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		runs:     make(map[string]*Run),
		sections: make(map[string]*Section),
		nodes:    make(map[string][]*Node),
		cuts:     make(map[string][]*Cut),
	}
}

// Close is a no-op for MemStore.
func (s *MemStore) Close() error {
	return nil
}

// =============================================================================
// Runs
// =============================================================================

func (s *MemStore) SaveRun(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	// Deep copy to avoid mutation issues
	copy := *run
	s.runs[run.ID] = &copy
	return nil
}

func (s *MemStore) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if run, ok := s.runs[id]; ok {
		copy := *run
		return &copy, nil
	}
	return nil, nil
}

func (s *MemStore) ListRuns() ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		copy := *run
		runs = append(runs, &copy)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt != runs[j].CreatedAt {
			return runs[i].CreatedAt > runs[j].CreatedAt
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

// =============================================================================
// Sections
// =============================================================================

func (s *MemStore) SaveSection(sec *Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sec.ID == "" {
		sec.ID = uuid.NewString()
	}
	copy := *sec
	copy.Windows = append([]int(nil), sec.Windows...)
	s.sections[sec.ID] = &copy
	return nil
}

func (s *MemStore) ListSections(runID string) ([]*Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sections []*Section
	for _, sec := range s.sections {
		if sec.RunID == runID {
			copy := *sec
			sections = append(sections, &copy)
		}
	}
	sort.Slice(sections, func(i, j int) bool {
		return sections[i].Index < sections[j].Index
	})
	return sections, nil
}

// =============================================================================
// Nodes
// =============================================================================

func (s *MemStore) SaveNodes(sectionID string, nodes []*Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]*Node, len(nodes))
	for i, n := range nodes {
		n.SectionID = sectionID
		copy := *n
		stored[i] = &copy
	}
	s.nodes[sectionID] = stored
	return nil
}

func (s *MemStore) ListNodes(sectionID string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var nodes []*Node
	for _, n := range s.nodes[sectionID] {
		copy := *n
		nodes = append(nodes, &copy)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		return nodes[i].Entity < nodes[j].Entity
	})
	return nodes, nil
}

// =============================================================================
// Cuts
// =============================================================================

func (s *MemStore) SaveCuts(runID string, cuts []*Cut) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]*Cut, len(cuts))
	for i, c := range cuts {
		c.RunID = runID
		copy := *c
		copy.Disagreements = append([]string(nil), c.Disagreements...)
		stored[i] = &copy
	}
	s.cuts[runID] = stored
	return nil
}

func (s *MemStore) ListCuts(runID string) ([]*Cut, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cuts []*Cut
	for _, c := range s.cuts[runID] {
		copy := *c
		cuts = append(cuts, &copy)
	}
	sort.Slice(cuts, func(i, j int) bool {
		return cuts[i].After < cuts[j].After
	})
	return cuts, nil
}

// Compile-time interface check
var _ Storer = (*MemStore)(nil)
