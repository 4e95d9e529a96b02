package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStore is the SQLite-backed data store.
// Thread-safe; the pipeline may persist while the CLI lists runs.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    source TEXT,
    config TEXT,
    entities INTEGER DEFAULT 0,
    atoms INTEGER DEFAULT 0,
    windows INTEGER DEFAULT 0,
    sections INTEGER DEFAULT 0,
    cuts INTEGER DEFAULT 0,
    unresolved INTEGER DEFAULT 0,
    duration_ms INTEGER DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    idx INTEGER NOT NULL,
    windows TEXT,
    energy REAL,
    consistency REAL,
    lipschitz_violations INTEGER DEFAULT 0,
    newick TEXT
);

CREATE INDEX IF NOT EXISTS idx_sections_run ON sections(run_id, idx);

-- Composite residues may use the full uint64 range and are stored bit-cast.
CREATE TABLE IF NOT EXISTS nodes (
    section_id TEXT NOT NULL,
    entity TEXT NOT NULL,
    parent TEXT,
    depth INTEGER NOT NULL,
    level INTEGER NOT NULL,
    centrality REAL,
    composite INTEGER,
    low_confidence INTEGER DEFAULT 0,
    PRIMARY KEY (section_id, entity)
);

CREATE TABLE IF NOT EXISTS cuts (
    run_id TEXT NOT NULL,
    before_window INTEGER NOT NULL,
    after_window INTEGER NOT NULL,
    disagreements TEXT,
    PRIMARY KEY (run_id, after_window)
);
`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every :memory: connection is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// Runs
// =============================================================================

// SaveRun inserts or replaces a run. An empty ID is filled with a new UUID.
func (s *SQLiteStore) SaveRun(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO runs (id, source, config, entities, atoms, windows,
			sections, cuts, unresolved, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Source, run.Config, run.Entities, run.Atoms, run.Windows,
		run.Sections, run.Cuts, run.Unresolved, run.DurationMs, run.CreatedAt)
	return err
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r Run
	err := s.db.QueryRow(`
		SELECT id, source, config, entities, atoms, windows, sections, cuts,
			unresolved, duration_ms, created_at
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Source, &r.Config, &r.Entities, &r.Atoms, &r.Windows,
		&r.Sections, &r.Cuts, &r.Unresolved, &r.DurationMs, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns all runs, newest first.
func (s *SQLiteStore) ListRuns() ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source, config, entities, atoms, windows, sections, cuts,
			unresolved, duration_ms, created_at
		FROM runs ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Source, &r.Config, &r.Entities, &r.Atoms, &r.Windows,
			&r.Sections, &r.Cuts, &r.Unresolved, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// =============================================================================
// Sections
// =============================================================================

// SaveSection inserts or replaces a section. An empty ID is filled with a new
// UUID.
func (s *SQLiteStore) SaveSection(sec *Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sec.ID == "" {
		sec.ID = uuid.NewString()
	}
	windowsJSON, err := json.Marshal(sec.Windows)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO sections (id, run_id, idx, windows, energy, consistency,
			lipschitz_violations, newick)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sec.ID, sec.RunID, sec.Index, string(windowsJSON), sec.Energy, sec.Consistency,
		sec.LipschitzViolations, sec.Newick)
	return err
}

// ListSections returns a run's sections in index order.
func (s *SQLiteStore) ListSections(runID string) ([]*Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, run_id, idx, windows, energy, consistency, lipschitz_violations, newick
		FROM sections WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []*Section
	for rows.Next() {
		var sec Section
		var windowsJSON string
		if err := rows.Scan(&sec.ID, &sec.RunID, &sec.Index, &windowsJSON, &sec.Energy,
			&sec.Consistency, &sec.LipschitzViolations, &sec.Newick); err != nil {
			return nil, err
		}
		if windowsJSON != "" {
			if err := json.Unmarshal([]byte(windowsJSON), &sec.Windows); err != nil {
				return nil, fmt.Errorf("section %s windows: %w", sec.ID, err)
			}
		}
		sections = append(sections, &sec)
	}
	return sections, rows.Err()
}

// =============================================================================
// Nodes
// =============================================================================

// SaveNodes replaces the forest stored for a section.
func (s *SQLiteStore) SaveNodes(sectionID string, nodes []*Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM nodes WHERE section_id = ?`, sectionID); err != nil {
		return err
	}
	for _, n := range nodes {
		n.SectionID = sectionID
		_, err := tx.Exec(`
			INSERT INTO nodes (section_id, entity, parent, depth, level, centrality,
				composite, low_confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, sectionID, n.Entity, n.Parent, n.Depth, n.Level, n.Centrality,
			int64(n.Composite), n.LowConfidence)
		if err != nil {
			return fmt.Errorf("node %s: %w", n.Entity, err)
		}
	}
	return tx.Commit()
}

// ListNodes returns a section's nodes ordered by depth, then entity.
func (s *SQLiteStore) ListNodes(sectionID string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT section_id, entity, parent, depth, level, centrality, composite, low_confidence
		FROM nodes WHERE section_id = ? ORDER BY depth, entity
	`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		var n Node
		var composite int64
		if err := rows.Scan(&n.SectionID, &n.Entity, &n.Parent, &n.Depth, &n.Level,
			&n.Centrality, &composite, &n.LowConfidence); err != nil {
			return nil, err
		}
		n.Composite = uint64(composite)
		nodes = append(nodes, &n)
	}
	return nodes, rows.Err()
}

// =============================================================================
// Cuts
// =============================================================================

// SaveCuts replaces the cuts stored for a run.
func (s *SQLiteStore) SaveCuts(runID string, cuts []*Cut) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cuts WHERE run_id = ?`, runID); err != nil {
		return err
	}
	for _, c := range cuts {
		c.RunID = runID
		disagreementsJSON, err := json.Marshal(c.Disagreements)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO cuts (run_id, before_window, after_window, disagreements)
			VALUES (?, ?, ?, ?)
		`, runID, c.Before, c.After, string(disagreementsJSON)); err != nil {
			return fmt.Errorf("cut %d/%d: %w", c.Before, c.After, err)
		}
	}
	return tx.Commit()
}

// ListCuts returns a run's cuts in window order.
func (s *SQLiteStore) ListCuts(runID string) ([]*Cut, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT run_id, before_window, after_window, disagreements
		FROM cuts WHERE run_id = ? ORDER BY after_window
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cuts []*Cut
	for rows.Next() {
		var c Cut
		var disagreementsJSON string
		if err := rows.Scan(&c.RunID, &c.Before, &c.After, &disagreementsJSON); err != nil {
			return nil, err
		}
		if disagreementsJSON != "" {
			if err := json.Unmarshal([]byte(disagreementsJSON), &c.Disagreements); err != nil {
				return nil, fmt.Errorf("cut %d disagreements: %w", c.After, err)
			}
		}
		cuts = append(cuts, &c)
	}
	return cuts, rows.Err()
}

// Compile-time interface check
var _ Storer = (*SQLiteStore)(nil)
