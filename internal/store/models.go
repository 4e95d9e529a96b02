// Package store provides SQLite-backed persistence for taxomine runs.
// A run owns its glued sections and logic cuts; a section owns the nodes of
// its assembled forest.
package store

// Run records one pipeline execution.
type Run struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Config     string `json:"config"` // JSON snapshot of the engine config
	Entities   int    `json:"entities"`
	Atoms      int    `json:"atoms"`
	Windows    int    `json:"windows"`
	Sections   int    `json:"sections"`
	Cuts       int    `json:"cuts"`
	Unresolved int    `json:"unresolved"`
	DurationMs int64  `json:"durationMs"`
	CreatedAt  int64  `json:"createdAt"`
}

// Section is one glued global section of a run.
type Section struct {
	ID                  string  `json:"id"`
	RunID               string  `json:"runId"`
	Index               int     `json:"index"`
	Windows             []int   `json:"windows"`
	Energy              float64 `json:"energy"`
	Consistency         float64 `json:"consistency"`
	LipschitzViolations int     `json:"lipschitzViolations"`
	Newick              string  `json:"newick"`
}

// Node is one entity of a section's forest.
type Node struct {
	SectionID  string  `json:"sectionId"`
	Entity     string  `json:"entity"`
	Parent     string  `json:"parent,omitempty"`
	Depth      int     `json:"depth"`
	Level      int     `json:"level"`
	Centrality float64 `json:"centrality"`
	Composite  uint64  `json:"composite,omitempty"`
	// LowConfidence is the digit count an entity was frozen at, 0 if it
	// reached the target precision.
	LowConfidence int `json:"lowConfidence,omitempty"`
}

// Cut is a logic cut between two windows of a run.
type Cut struct {
	RunID         string   `json:"runId"`
	Before        int      `json:"before"`
	After         int      `json:"after"`
	Disagreements []string `json:"disagreements"`
}

// Storer defines the interface for data persistence.
// This allows swapping between MemStore (testing) and SQLiteStore (production).
type Storer interface {
	// Runs
	SaveRun(run *Run) error
	GetRun(id string) (*Run, error)
	ListRuns() ([]*Run, error)

	// Sections and their forests
	SaveSection(section *Section) error
	ListSections(runID string) ([]*Section, error)
	SaveNodes(sectionID string, nodes []*Node) error
	ListNodes(sectionID string) ([]*Node, error)

	// Cuts
	SaveCuts(runID string, cuts []*Cut) error
	ListCuts(runID string) ([]*Cut, error)

	// Lifecycle
	Close() error
}
