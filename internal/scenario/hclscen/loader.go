// Package hclscen loads a scenario document written in HCL and translates it
// into the format-agnostic scenario model consumed by the planner.
package hclscen

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/taskmill/internal/ctxlog"
	"github.com/specialistvlad/taskmill/internal/scenario"
)

// Loader is the HCL implementation of the scenario loader.
type Loader struct{}

// NewLoader creates a new HCL scenario loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes the top-level blocks of a scenario document.
type fileRoot struct {
	Computations  []*taskBlock `hcl:"computation,block"`
	Manipulations []*taskBlock `hcl:"manipulation,block"`
	Evaluations   []*taskBlock `hcl:"evaluation,block"`
}

// taskBlock is the raw form of a single task declaration. Exactly one of
// Algorithm/Filter/Metric must be present, matching the block's task kind.
type taskBlock struct {
	Name string `hcl:"name,label"`

	Algorithm *algoBlock `hcl:"algorithm,block"`
	Filter    *algoBlock `hcl:"filter,block"`
	Metric    *algoBlock `hcl:"metric,block"`

	Train *sectionBlock `hcl:"train,block"`
	Devel *sectionBlock `hcl:"devel,block"`
	Eval  *sectionBlock `hcl:"eval,block"`
	Data  *sectionBlock `hcl:"data,block"`
	Input *sectionBlock `hcl:"input,block"`
	Out   *sectionBlock `hcl:"output,block"`
}

// algoBlock carries the algorithm descriptor attributes.
type algoBlock struct {
	Impl     string `hcl:"impl"`
	Params   string `hcl:"params,optional"`
	Parallel bool   `hcl:"parallel,optional"`
}

// sectionBlock holds the data source entry lists of one section. The values
// stay as expressions so they can be evaluated against the scenario eval
// context (which exposes the working directory) after decoding.
type sectionBlock struct {
	Dataset hcl.Expression `hcl:"dataset,optional"`
	Feature hcl.Expression `hcl:"feature,optional"`
	File    hcl.Expression `hcl:"file,optional"`
}

// Load parses the scenario file at path and translates it into a validated
// model. workdir is exposed to the document as the `workdir` variable.
func (l *Loader) Load(ctx context.Context, path, workdir string) (*scenario.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL scenario loader started.", "path", path)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse scenario file %s: %w", path, diags)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"workdir": cty.StringVal(workdir),
		},
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode scenario file %s: %w", path, diags)
	}

	model := &scenario.Model{}
	for _, group := range []struct {
		kind   scenario.TaskKind
		blocks []*taskBlock
	}{
		{scenario.Computation, root.Computations},
		{scenario.Manipulation, root.Manipulations},
		{scenario.Evaluation, root.Evaluations},
	} {
		for _, b := range group.blocks {
			task, err := l.translateTask(group.kind, b, evalCtx)
			if err != nil {
				return nil, err
			}
			model.Tasks = append(model.Tasks, task)
		}
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Scenario loaded.", "tasks", len(model.Tasks))
	return model, nil
}

// translateTask converts one raw block into a scenario task.
func (l *Loader) translateTask(kind scenario.TaskKind, b *taskBlock, evalCtx *hcl.EvalContext) (*scenario.Task, error) {
	algo, err := algoForKind(kind, b)
	if err != nil {
		return nil, err
	}

	t := &scenario.Task{
		ID:   b.Name,
		Kind: kind,
		Algorithm: scenario.Algorithm{
			Impl:     algo.Impl,
			Params:   algo.Params,
			Parallel: algo.Parallel,
		},
	}

	if kind != scenario.Computation && (b.Train != nil || b.Devel != nil || b.Eval != nil) {
		return nil, fmt.Errorf("task %q: train/devel/eval sections are only valid on computation blocks", b.Name)
	}

	if t.Train, err = decodeSection(b.Train, b.Name, evalCtx); err != nil {
		return nil, err
	}
	if t.Devel, err = decodeSection(b.Devel, b.Name, evalCtx); err != nil {
		return nil, err
	}
	if t.Eval, err = decodeSection(b.Eval, b.Name, evalCtx); err != nil {
		return nil, err
	}
	if t.Inputs, err = decodeSection(b.Input, b.Name, evalCtx); err != nil {
		return nil, err
	}
	if t.Outputs, err = decodeSection(b.Out, b.Name, evalCtx); err != nil {
		return nil, err
	}

	// A data section declares in-place sources: consumed and produced by the
	// same task.
	if b.Data != nil {
		shared, err := decodeSection(b.Data, b.Name, evalCtx)
		if err != nil {
			return nil, err
		}
		t.Inputs = append(t.Inputs, shared...)
		t.Outputs = append(t.Outputs, shared...)
	}

	return t, nil
}

// algoForKind enforces that the algorithm-class block matches the task kind:
// algorithm on computation, filter on manipulation, metric on evaluation.
func algoForKind(kind scenario.TaskKind, b *taskBlock) (*algoBlock, error) {
	declared := 0
	for _, a := range []*algoBlock{b.Algorithm, b.Filter, b.Metric} {
		if a != nil {
			declared++
		}
	}
	if declared != 1 {
		return nil, fmt.Errorf("task %q: exactly one algorithm/filter/metric block is required, found %d", b.Name, declared)
	}

	switch kind {
	case scenario.Computation:
		if b.Algorithm == nil {
			return nil, fmt.Errorf("task %q: computation blocks take an algorithm block", b.Name)
		}
		return b.Algorithm, nil
	case scenario.Manipulation:
		if b.Filter == nil {
			return nil, fmt.Errorf("task %q: manipulation blocks take a filter block", b.Name)
		}
		return b.Filter, nil
	default:
		if b.Metric == nil {
			return nil, fmt.Errorf("task %q: evaluation blocks take a metric block", b.Name)
		}
		return b.Metric, nil
	}
}

// decodeSection evaluates the dataset/feature/file entry lists of a section.
func decodeSection(s *sectionBlock, taskID string, evalCtx *hcl.EvalContext) ([]scenario.DataSource, error) {
	if s == nil {
		return nil, nil
	}

	var sources []scenario.DataSource
	for _, entry := range []struct {
		kind scenario.SourceKind
		expr hcl.Expression
	}{
		{scenario.DatasetSource, s.Dataset},
		{scenario.FeatureSource, s.Feature},
		{scenario.FileSource, s.File},
	} {
		ids, err := evalStringList(entry.expr, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("task %q: %s entries: %w", taskID, entry.kind, err)
		}
		for _, id := range ids {
			sources = append(sources, scenario.DataSource{Kind: entry.kind, ID: id})
		}
	}
	return sources, nil
}

// evalStringList resolves an expression to a list of non-empty strings.
func evalStringList(expr hcl.Expression, evalCtx *hcl.EvalContext) ([]string, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("expected a list of strings, got %s", val.Type().FriendlyName())
	}

	var out []string
	for it := val.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		if ev.IsNull() || ev.Type() != cty.String {
			return nil, fmt.Errorf("expected a list of strings, got element of type %s", ev.Type().FriendlyName())
		}
		if ev.AsString() == "" {
			return nil, fmt.Errorf("empty data source identifier")
		}
		out = append(out, ev.AsString())
	}
	return out, nil
}
