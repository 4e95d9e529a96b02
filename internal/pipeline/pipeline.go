// Package pipeline runs the full analysis: featurize text, scan it into
// verified sections, assemble a forest per section and persist the result.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kittclouds/taxomine/internal/config"
	"github.com/kittclouds/taxomine/internal/featurize"
	"github.com/kittclouds/taxomine/internal/store"
	"github.com/kittclouds/taxomine/internal/telemetry"
	"github.com/kittclouds/taxomine/pkg/adelic"
	"github.com/kittclouds/taxomine/pkg/hierarchy"
	"github.com/kittclouds/taxomine/pkg/sheaf"
)

// Options for a pipeline run. Only Config is required; a nil Config uses
// the defaults.
type Options struct {
	Config  *config.Config
	Source  string
	Store   store.Storer
	Metrics *telemetry.Metrics
	Logger  *zap.Logger
}

// Report is the JSON-serialisable outcome of a run.
type Report struct {
	RunID      string           `json:"runId"`
	Source     string           `json:"source,omitempty"`
	Entities   int              `json:"entities"`
	Atoms      int              `json:"atoms"`
	Windows    int              `json:"windows"`
	Unresolved []int            `json:"unresolved"`
	Cuts       []sheaf.LogicCut `json:"cuts"`
	Sections   []*SectionReport `json:"sections"`
	Elapsed    time.Duration    `json:"elapsed"`
}

// SectionReport summarises one glued section and its forest.
type SectionReport struct {
	Index               int                `json:"index"`
	Windows             []int              `json:"windows"`
	Energy              float64            `json:"energy"`
	Consistency         float64            `json:"consistency"`
	LipschitzViolations int                `json:"lipschitzViolations"`
	Excluded            []adelic.Exclusion `json:"excluded,omitempty"`
	LowConfidence       map[string]int     `json:"lowConfidence,omitempty"`
	Forest              *hierarchy.Forest  `json:"forest"`
	Newick              string             `json:"newick"`

	section *sheaf.GlobalSection
}

// Run executes the pipeline over text.
func Run(ctx context.Context, text string, opts Options) (*Report, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: config: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Engine.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Engine.Timeout)
		defer cancel()
	}

	stream, err := featurize.Featurize(text, cfg.Featurizer)
	if err != nil {
		return nil, fmt.Errorf("pipeline: featurize: %w", err)
	}
	log.Info("featurized",
		zap.String("source", opts.Source),
		zap.Int("entities", len(stream.Entities)),
		zap.Int("atoms", len(stream.Atoms)))

	start := time.Now()
	res, err := sheaf.Scan(ctx, stream, cfg.ScanConfig(log))
	if err != nil {
		return nil, fmt.Errorf("pipeline: scan: %w", err)
	}
	elapsed := time.Since(start)
	opts.Metrics.ObserveScan(res, elapsed)

	rep := &Report{
		RunID:      uuid.NewString(),
		Source:     opts.Source,
		Entities:   len(stream.Entities),
		Atoms:      len(stream.Atoms),
		Windows:    res.Windows,
		Unresolved: res.Unresolved,
		Cuts:       res.Cuts,
		Elapsed:    elapsed,
	}
	for _, sec := range res.Sections {
		forest := hierarchy.Assemble(sec)
		rep.Sections = append(rep.Sections, &SectionReport{
			Index:               sec.Index,
			Windows:             sec.WindowIndexes(),
			Energy:              sec.Energy,
			Consistency:         sec.Consistency,
			LipschitzViolations: sec.LipschitzViolations,
			Excluded:            sec.Excluded,
			LowConfidence:       sec.LowConfidence,
			Forest:              forest,
			Newick:              forest.Newick(),
			section:             sec,
		})
	}
	log.Info("scan complete",
		zap.String("run", rep.RunID),
		zap.Int("windows", rep.Windows),
		zap.Int("sections", len(rep.Sections)),
		zap.Int("cuts", len(rep.Cuts)),
		zap.Int("unresolved", len(rep.Unresolved)),
		zap.Duration("elapsed", elapsed))

	if opts.Store != nil {
		if err := persist(opts.Store, rep, cfg); err != nil {
			return rep, fmt.Errorf("pipeline: store: %w", err)
		}
	}
	return rep, nil
}

func persist(s store.Storer, rep *Report, cfg *config.Config) error {
	engine, err := json.Marshal(cfg.Engine)
	if err != nil {
		return err
	}
	run := &store.Run{
		ID:         rep.RunID,
		Source:     rep.Source,
		Config:     string(engine),
		Entities:   rep.Entities,
		Atoms:      rep.Atoms,
		Windows:    rep.Windows,
		Sections:   len(rep.Sections),
		Cuts:       len(rep.Cuts),
		Unresolved: len(rep.Unresolved),
		DurationMs: rep.Elapsed.Milliseconds(),
		CreatedAt:  time.Now().UnixMilli(),
	}
	if err := s.SaveRun(run); err != nil {
		return err
	}

	for _, sr := range rep.Sections {
		sec := &store.Section{
			RunID:               run.ID,
			Index:               sr.Index,
			Windows:             sr.Windows,
			Energy:              sr.Energy,
			Consistency:         sr.Consistency,
			LipschitzViolations: sr.LipschitzViolations,
			Newick:              sr.Newick,
		}
		if err := s.SaveSection(sec); err != nil {
			return err
		}
		nodes := make([]*store.Node, 0, sr.Forest.Len())
		for _, n := range sr.Forest.Nodes {
			nodes = append(nodes, &store.Node{
				Entity:        n.Entity,
				Parent:        n.Parent,
				Depth:         n.Depth,
				Level:         n.Level,
				Centrality:    sr.section.Centrality[n.Entity],
				Composite:     sr.section.Composite[n.Entity],
				LowConfidence: sr.LowConfidence[n.Entity],
			})
		}
		if err := s.SaveNodes(sec.ID, nodes); err != nil {
			return err
		}
	}

	cuts := make([]*store.Cut, len(rep.Cuts))
	for i, c := range rep.Cuts {
		cut := &store.Cut{Before: c.Before, After: c.After}
		for _, d := range c.Disagreements {
			cut.Disagreements = append(cut.Disagreements, d.String())
		}
		cuts[i] = cut
	}
	return s.SaveCuts(run.ID, cuts)
}
