// Package sheaf drives the solver over overlapping windows of a relation
// stream and glues adjacent windows into global sections only when their
// overlaps agree exactly. Disagreement cuts the chain; nothing is averaged.
//
// Window solves are independent and run in parallel. Gluing is sequential
// because each window is checked against the one accepted before it.
package sheaf

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/taxomine/pkg/graph"
)

// Stream is the externally featurized input, in stream order.
type Stream struct {
	Entities []graph.Entity
	Atoms    []graph.RelationAtom
}

// Result of a scan
type Result struct {
	Sections []*GlobalSection `json:"sections"`
	Cuts     []LogicCut       `json:"cuts"`
	// Unresolved lists windows where no prime found structure. Each one also
	// closes the section before it.
	Unresolved []int `json:"unresolved"`
	Windows    int   `json:"windows"`
}

type scanner struct {
	cfg        Config
	stream     Stream
	centrality map[string]float64
	log        *zap.Logger
}

// Scan partitions the stream, solves every window and glues the results.
// Contract violations in the configuration or the stream are returned before
// any solving starts.
func Scan(ctx context.Context, stream Stream, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g, err := graph.Build(stream.Entities, stream.Atoms)
	if err != nil {
		return nil, err
	}

	s := &scanner{
		cfg:        cfg,
		stream:     stream,
		centrality: make(map[string]float64, g.NodeCount()),
		log:        cfg.logger(),
	}
	for id, n := range g.Nodes {
		s.centrality[id] = n.Centrality
	}
	if orphans := g.OrphanNodes(); len(orphans) > 0 {
		s.log.Debug("entities without relations are never placed", zap.Strings("ids", orphans))
	}

	start := time.Now()
	spans := Partition(len(stream.Atoms), cfg.WindowSize, cfg.Overlap)
	windows := make([]*Window, len(spans))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(cfg.Workers, 1))
	for i, span := range spans {
		eg.Go(func() error {
			w, err := s.solveWindow(egCtx, i, span)
			if err != nil {
				return fmt.Errorf("sheaf: window %d: %w", i, err)
			}
			windows[i] = w
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sheaf: scan interrupted: %w", err)
	}

	res := s.glue(windows)
	s.log.Info("scan complete",
		zap.Int("windows", len(windows)),
		zap.Int("sections", len(res.Sections)),
		zap.Int("cuts", len(res.Cuts)),
		zap.Int("unresolved", len(res.Unresolved)),
		zap.String("kernel", s.cfg.kernel().Name()),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// glue walks the windows in stream order.
func (s *scanner) glue(windows []*Window) *Result {
	res := &Result{Windows: len(windows)}
	primes := s.cfg.Primes

	var current *GlobalSection
	var prev *Window
	closeSection := func() {
		if current != nil {
			res.Sections = append(res.Sections, current)
			current = nil
		}
		prev = nil
	}

	for _, w := range windows {
		if !w.Resolved() {
			closeSection()
			res.Unresolved = append(res.Unresolved, w.Index)
			continue
		}
		if current == nil {
			current = newSection(len(res.Sections), w, primes, s.centrality)
			prev = w
			continue
		}

		diffs := Verify(prev, w, primes, s.cfg.Tolerance)
		if len(diffs) == 0 {
			current.glue(w, primes, s.centrality)
			prev = w
			continue
		}

		s.log.Debug("logic cut",
			zap.Int("before", prev.Index),
			zap.Int("after", w.Index),
			zap.Int("disagreements", len(diffs)),
			zap.Stringer("first", diffs[0]))
		res.Cuts = append(res.Cuts, LogicCut{Before: prev.Index, After: w.Index, Disagreements: diffs})
		closeSection()
		current = newSection(len(res.Sections), w, primes, s.centrality)
		prev = w
	}
	closeSection()
	return res
}
