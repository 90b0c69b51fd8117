package plan

import (
	"fmt"

	"github.com/specialistvlad/taskmill/internal/scenario"
)

// parallelize replaces every node whose algorithm is marked parallelizable
// with `workers` sibling clones, each operating on a disjoint slice of the
// train/devel/eval data. When the scenario declares a single shared training
// source, a generated fan-out manipulation splits it into parts first; a
// generated fan-in manipulation merges the clones' partial outputs back into
// the declared outputs either way.
func parallelize(g *Graph, workers int) error {
	if workers <= 1 {
		return nil
	}

	for _, n := range g.Ordered() {
		if !n.Algorithm.Parallel {
			continue
		}
		if n.Kind == scenario.Manipulation {
			return fmt.Errorf("task %q: manipulation tasks cannot be parallelized", n.ID)
		}
		if err := parallelizeNode(g, n, workers); err != nil {
			return err
		}
	}
	return nil
}

func parallelizeNode(g *Graph, n *Node, workers int) error {
	if len(n.Train) == 0 {
		return fmt.Errorf("task %q: parallelizable task declares no training data", n.ID)
	}

	direct := len(n.Train) == workers
	if !direct && len(n.Train) != 1 {
		return fmt.Errorf("task %q: cannot partition %d training sources across %d workers",
			n.ID, len(n.Train), workers)
	}

	// Partition the training triples: either the i-th declared entry, or
	// the i-th part of the single shared source.
	train, devel, eval := make([][]scenario.DataSource, workers), make([][]scenario.DataSource, workers), make([][]scenario.DataSource, workers)
	var splitInputs, splitOutputs []scenario.DataSource
	partition := func(section []scenario.DataSource, into [][]scenario.DataSource) {
		if len(section) == 0 {
			return
		}
		if direct {
			for i := 0; i < workers; i++ {
				into[i] = []scenario.DataSource{section[i]}
			}
			return
		}
		parts := section[0].Split(workers)
		splitInputs = append(splitInputs, section[0])
		splitOutputs = append(splitOutputs, parts...)
		for i := 0; i < workers; i++ {
			into[i] = []scenario.DataSource{parts[i]}
		}
	}
	partition(n.Train, train)
	partition(n.Devel, devel)
	partition(n.Eval, eval)

	// Each clone writes part outputs; the fan-in merges them back into the
	// outputs the scenario declared, so downstream consumers are untouched.
	outParts := make([][]scenario.DataSource, workers)
	var mergeInputs []scenario.DataSource
	for _, out := range n.Outputs {
		parts := out.Split(workers)
		mergeInputs = append(mergeInputs, parts...)
		for i := 0; i < workers; i++ {
			outParts[i] = append(outParts[i], parts[i])
		}
	}

	if len(splitInputs) > 0 {
		fanOut := &Node{
			ID:        n.ID + ".split",
			Kind:      scenario.Manipulation,
			Algorithm: scenario.Algorithm{Impl: "split"},
			Inputs:    splitInputs,
			Outputs:   splitOutputs,
		}
		if err := g.Add(fanOut); err != nil {
			return err
		}
	}

	for i := 0; i < workers; i++ {
		clone := n.clone(fmt.Sprintf("%s#%d", n.ID, i))
		clone.Train, clone.Devel, clone.Eval = train[i], devel[i], eval[i]
		clone.Outputs = outParts[i]
		if err := g.Add(clone); err != nil {
			return err
		}
	}

	fanIn := &Node{
		ID:        n.ID + ".merge",
		Kind:      scenario.Manipulation,
		Algorithm: scenario.Algorithm{Impl: "merge"},
		Inputs:    mergeInputs,
		Outputs:   append([]scenario.DataSource(nil), n.Outputs...),
	}
	if err := g.Add(fanIn); err != nil {
		return err
	}

	g.Remove(n.ID)
	return nil
}
