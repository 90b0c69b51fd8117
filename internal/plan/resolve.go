package plan

import (
	"fmt"

	"github.com/specialistvlad/taskmill/internal/scenario"
)

// occurrence collects all uses of one data-source identity: the consuming
// nodes and the single permitted producer.
type occurrence struct {
	source    scenario.DataSource
	producer  string
	consumers []string
}

// resolveEdges rebuilds the dependency edges of the graph from declared
// data-source usage. It is a single-pass validation-and-linking step: a
// second producer for the same identity is a duplicate-output error, and a
// dataset without any producer is a scenario error. Files and features
// without producers are assumed to pre-exist.
func resolveEdges(g *Graph) error {
	g.clearEdges()

	table := make(map[string]*occurrence)
	occ := func(ds scenario.DataSource) *occurrence {
		o, ok := table[ds.Key()]
		if !ok {
			o = &occurrence{source: ds}
			table[ds.Key()] = o
		}
		return o
	}

	for _, n := range g.Ordered() {
		for _, section := range [][]scenario.DataSource{n.Inputs, n.Train, n.Devel, n.Eval} {
			for _, ds := range section {
				o := occ(ds)
				o.consumers = append(o.consumers, n.ID)
			}
		}
		for _, ds := range n.Outputs {
			o := occ(ds)
			if o.producer != "" && o.producer != n.ID {
				return fmt.Errorf("duplicate output: %s %q is produced by both %q and %q",
					ds.Kind, ds.ID, o.producer, n.ID)
			}
			o.producer = n.ID
		}
	}

	for _, o := range table {
		if o.producer == "" {
			if o.source.Kind == scenario.DatasetSource {
				return fmt.Errorf("dataset %q is never produced by any task", o.source.ID)
			}
			// Files and features with no producer are externally available.
			continue
		}
		for _, consumer := range o.consumers {
			g.link(o.producer, consumer)
		}
	}
	return nil
}
