package plan

import (
	"context"
	"fmt"

	"github.com/specialistvlad/taskmill/internal/ctxlog"
	"github.com/specialistvlad/taskmill/internal/scenario"
)

// Options configures a plan build.
type Options struct {
	// Workers is the global worker budget used to partition parallelizable
	// tasks: threads per process times cooperating process instances.
	Workers int
	// Workdir anchors relative file patterns and data-source paths.
	Workdir string
}

// Build runs the full planning pipeline against a scenario model: node
// creation, dependency resolution, wildcard expansion, parallelization, and
// initial status assignment. Any scenario error aborts the build; no partial
// plan is returned.
func Build(ctx context.Context, model *scenario.Model, opts Options) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	if err := model.Validate(); err != nil {
		return nil, err
	}

	g := NewGraph()
	for _, t := range model.Tasks {
		n := &Node{
			ID:        t.ID,
			Kind:      t.Kind,
			Algorithm: t.Algorithm,
			Inputs:    append([]scenario.DataSource(nil), t.Inputs...),
			Outputs:   append([]scenario.DataSource(nil), t.Outputs...),
			Train:     append([]scenario.DataSource(nil), t.Train...),
			Devel:     append([]scenario.DataSource(nil), t.Devel...),
			Eval:      append([]scenario.DataSource(nil), t.Eval...),
		}
		if err := g.Add(n); err != nil {
			return nil, err
		}
	}
	logger.Debug("Plan build: nodes created.", "count", g.Len())

	// First resolution links templates so expansion can walk the graph in
	// dependency order; identifiers still carry their patterns and match
	// textually on both sides.
	if err := resolveEdges(g); err != nil {
		return nil, err
	}
	if err := expandGraph(ctx, g, opts.Workdir); err != nil {
		return nil, err
	}
	logger.Debug("Plan build: wildcard expansion complete.", "count", g.Len())

	// Expansion rewrote identifiers and replaced templates with clones, so
	// the edges are recomputed from scratch.
	if err := resolveEdges(g); err != nil {
		return nil, err
	}
	if err := parallelize(g, opts.Workers); err != nil {
		return nil, err
	}
	if err := resolveEdges(g); err != nil {
		return nil, err
	}
	logger.Debug("Plan build: parallelization complete.", "count", g.Len())

	if _, err := g.topoOrder(); err != nil {
		return nil, fmt.Errorf("error validating dependency graph: %w", err)
	}

	for _, n := range g.Ordered() {
		if len(n.Preds) == 0 {
			n.Status = scenario.Pending
		} else {
			n.Status = scenario.Waiting
		}
	}
	return g, nil
}
