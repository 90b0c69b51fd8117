// Package plan turns a validated scenario model into the final task-node
// DAG: it resolves producer/consumer dependencies from declared data-source
// usage, expands wildcard task templates into concrete nodes, and partitions
// parallelizable tasks across the worker budget.
package plan

import (
	"fmt"
	"sort"

	"github.com/specialistvlad/taskmill/internal/scenario"
)

// Node is one planned unit of work. Edges are stored as id sets rather than
// pointers, which keeps the graph free of reference cycles and makes the
// persisted form trivial.
type Node struct {
	ID        string
	Kind      scenario.TaskKind
	Algorithm scenario.Algorithm

	Inputs  []scenario.DataSource
	Outputs []scenario.DataSource
	Train   []scenario.DataSource
	Devel   []scenario.DataSource
	Eval    []scenario.DataSource

	// Preds holds the ids of nodes this node depends on; Succs the ids of
	// nodes depending on it. Both are maintained by the resolver.
	Preds map[string]struct{}
	Succs map[string]struct{}

	Status scenario.Status
}

// clone returns a deep copy of n under a new id, with empty edge sets. The
// resolver re-links clones from their rewritten data sources.
func (n *Node) clone(id string) *Node {
	c := &Node{
		ID:        id,
		Kind:      n.Kind,
		Algorithm: n.Algorithm,
		Inputs:    append([]scenario.DataSource(nil), n.Inputs...),
		Outputs:   append([]scenario.DataSource(nil), n.Outputs...),
		Train:     append([]scenario.DataSource(nil), n.Train...),
		Devel:     append([]scenario.DataSource(nil), n.Devel...),
		Eval:      append([]scenario.DataSource(nil), n.Eval...),
		Preds:     make(map[string]struct{}),
		Succs:     make(map[string]struct{}),
	}
	return c
}

// PredIDs returns the node's predecessor ids in sorted order.
func (n *Node) PredIDs() []string {
	return sortedKeys(n.Preds)
}

// SuccIDs returns the node's successor ids in sorted order.
func (n *Node) SuccIDs() []string {
	return sortedKeys(n.Succs)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Graph is the mutable task-node DAG the planning passes operate on.
type Graph struct {
	nodes map[string]*Node
	// order preserves insertion order for deterministic emission.
	order []string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// Add inserts a node. Node ids must be unique within the graph.
func (g *Graph) Add(n *Node) error {
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("duplicate node id %q", n.ID)
	}
	if n.Preds == nil {
		n.Preds = make(map[string]struct{})
	}
	if n.Succs == nil {
		n.Succs = make(map[string]struct{})
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return nil
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Remove deletes a node and severs all edges referencing it.
func (g *Graph) Remove(id string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for pred := range n.Preds {
		if p := g.nodes[pred]; p != nil {
			delete(p.Succs, id)
		}
	}
	for succ := range n.Succs {
		if s := g.nodes[succ]; s != nil {
			delete(s.Preds, id)
		}
	}
	delete(g.nodes, id)
}

// link records that consumer depends on producer. Self-edges are ignored:
// a task reading and writing the same in-place data source does not depend
// on itself.
func (g *Graph) link(producerID, consumerID string) {
	if producerID == consumerID {
		return
	}
	producer, consumer := g.nodes[producerID], g.nodes[consumerID]
	if producer == nil || consumer == nil {
		return
	}
	consumer.Preds[producerID] = struct{}{}
	producer.Succs[consumerID] = struct{}{}
}

// clearEdges drops every edge so the resolver can rebuild them from the
// current data-source declarations.
func (g *Graph) clearEdges() {
	for _, n := range g.nodes {
		n.Preds = make(map[string]struct{})
		n.Succs = make(map[string]struct{})
	}
}

// Ordered returns the live nodes in insertion order.
func (g *Graph) Ordered() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, id := range g.order {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// topoOrder returns the nodes so that every node appears after all of its
// predecessors, detecting cycles along the way. Ties are broken by insertion
// order.
func (g *Graph) topoOrder() ([]*Node, error) {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var out []*Node

	var visit func(n *Node) error
	visit = func(n *Node) error {
		visiting[n.ID] = true
		for _, predID := range n.PredIDs() {
			pred := g.nodes[predID]
			if pred == nil {
				continue
			}
			if visiting[pred.ID] {
				return fmt.Errorf("cycle detected involving %q", pred.ID)
			}
			if !visited[pred.ID] {
				if err := visit(pred); err != nil {
					return err
				}
			}
		}
		delete(visiting, n.ID)
		visited[n.ID] = true
		out = append(out, n)
		return nil
	}

	for _, n := range g.Ordered() {
		if !visited[n.ID] {
			if err := visit(n); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
