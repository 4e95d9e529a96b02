// Package solver fits a single prime field to a set of entities and
// undirected relations by random sample consensus.
//
// Every trial is a pure function of the input graph, the seed and the trial
// index, so trials run on a worker pool and are reduced in index order. The
// outcome never depends on the number of workers.
package solver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/taxomine/pkg/graph"
	"github.com/kittclouds/taxomine/pkg/manifold"
)

// Problem is the solver input: entities and the undirected atoms among them.
type Problem struct {
	Entities []graph.Entity
	Atoms    []graph.RelationAtom
}

// Solver implements the prime field solver
type Solver struct {
	config Config
}

func New(cfg Config) *Solver {
	return &Solver{config: cfg}
}

// Solve returns the best-scoring manifold over the configured trials, or
// ErrUnresolved when none reaches MinInliers. Cancelling ctx stops scheduling
// further trials; the best trial completed so far is still returned.
func (s *Solver) Solve(ctx context.Context, p Problem) (*manifold.LocalManifold, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	g, err := graph.Build(p.Entities, p.Atoms)
	if err != nil {
		return nil, err
	}
	return s.solveGraph(ctx, g)
}

func (s *Solver) solveGraph(ctx context.Context, g *graph.RelationGraph) (*manifold.LocalManifold, error) {
	log := s.config.logger().With(zap.Uint64("prime", s.config.Prime))
	start := time.Now()

	if s.config.MinInliers > g.NodeCount() {
		log.Debug("min inliers exceeds entity count",
			zap.Int("minInliers", s.config.MinInliers),
			zap.Int("entities", g.NodeCount()))
		return nil, fmt.Errorf("%w: need %d inliers from %d entities",
			ErrUnresolved, s.config.MinInliers, g.NodeCount())
	}

	t := newTrialer(g, s.config)
	batch := s.config.workers()

	var best *manifold.LocalManifold
	sinceBest := 0
	done := 0
	stopped := false

	for next := 0; next < s.config.Iterations && !stopped; next += batch {
		if ctx.Err() != nil {
			break
		}
		end := min(next+batch, s.config.Iterations)
		results := make([]*manifold.LocalManifold, end-next)

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(batch)
		for i := next; i < end; i++ {
			eg.Go(func() error {
				if egCtx.Err() != nil {
					return nil
				}
				results[i-next] = t.run(i)
				return nil
			})
		}
		_ = eg.Wait()

		// Reduce in trial order so early stopping is worker independent.
		for _, m := range results {
			if m == nil {
				continue
			}
			done++
			if best == nil || better(m, best) {
				best = m
				sinceBest = 0
				continue
			}
			sinceBest++
			if s.config.Patience > 0 && sinceBest >= s.config.Patience {
				stopped = true
				break
			}
		}
	}

	if best == nil || len(best.Inliers) < s.config.MinInliers {
		inliers := 0
		if best != nil {
			inliers = len(best.Inliers)
		}
		log.Debug("unresolved", zap.Int("trials", done), zap.Int("bestInliers", inliers))
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnresolved, err)
		}
		return nil, fmt.Errorf("%w: best trial has %d of %d required inliers",
			ErrUnresolved, inliers, s.config.MinInliers)
	}

	log.Debug("solved",
		zap.Int("trials", done),
		zap.Int("bestTrial", best.Trial),
		zap.Int("inliers", len(best.Inliers)),
		zap.Int("pairs", len(best.Pairs)),
		zap.Float64("energy", best.Energy.Total),
		zap.Duration("elapsed", time.Since(start)))
	return best, nil
}

// better orders trials: more inliers, then lower energy, then fewer
// Lipschitz violations, then the earlier trial.
func better(a, b *manifold.LocalManifold) bool {
	if len(a.Inliers) != len(b.Inliers) {
		return len(a.Inliers) > len(b.Inliers)
	}
	if a.Energy.Total != b.Energy.Total {
		return a.Energy.Total < b.Energy.Total
	}
	if a.LipschitzViolations != b.LipschitzViolations {
		return a.LipschitzViolations < b.LipschitzViolations
	}
	return a.Trial < b.Trial
}
