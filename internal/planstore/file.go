package planstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/specialistvlad/taskmill/internal/plan"
	"github.com/specialistvlad/taskmill/internal/scenario"
)

// stateVersion guards against loading plan files written by an incompatible
// build.
const stateVersion = 1

// fileState is the on-disk form of a plan. YAML keeps the file readable for
// operators inspecting node statuses by hand.
type fileState struct {
	Version  int           `yaml:"version"`
	Scenario string        `yaml:"scenario"`
	Nodes    []*nodeRecord `yaml:"nodes"`
}

// nodeRecord is one persisted task node. Edges are stored as predecessor and
// successor id lists.
type nodeRecord struct {
	ID       string `yaml:"id"`
	Kind     string `yaml:"kind"`
	Impl     string `yaml:"impl"`
	Params   string `yaml:"params,omitempty"`
	Parallel bool   `yaml:"parallel,omitempty"`

	Inputs  []sourceRecord `yaml:"inputs,omitempty"`
	Outputs []sourceRecord `yaml:"outputs,omitempty"`
	Train   []sourceRecord `yaml:"train,omitempty"`
	Devel   []sourceRecord `yaml:"devel,omitempty"`
	Eval    []sourceRecord `yaml:"eval,omitempty"`

	Preds []string `yaml:"preds,omitempty"`
	Succs []string `yaml:"succs,omitempty"`

	Status string `yaml:"status"`
	// Claim is the token of the worker currently holding the node, empty
	// unless the status is in-progress.
	Claim string `yaml:"claim,omitempty"`
	// Fingerprint hashes the node's definition so a changed-tasks reset can
	// tell stale nodes from current ones.
	Fingerprint string `yaml:"fingerprint"`
}

// sourceRecord is one persisted data source reference.
type sourceRecord struct {
	Kind string `yaml:"kind"`
	ID   string `yaml:"id"`
}

func toSourceRecords(sources []scenario.DataSource) []sourceRecord {
	if len(sources) == 0 {
		return nil
	}
	out := make([]sourceRecord, len(sources))
	for i, ds := range sources {
		out[i] = sourceRecord{Kind: ds.Kind.String(), ID: ds.ID}
	}
	return out
}

func fromSourceRecords(records []sourceRecord) ([]scenario.DataSource, error) {
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]scenario.DataSource, len(records))
	for i, r := range records {
		kind, err := scenario.ParseSourceKind(r.Kind)
		if err != nil {
			return nil, err
		}
		out[i] = scenario.DataSource{Kind: kind, ID: r.ID}
	}
	return out, nil
}

// Fingerprint hashes the definition of a node: kind, algorithm descriptor
// and every data-source section. Statuses and edges are deliberately
// excluded so only scenario changes alter the hash.
func Fingerprint(n *plan.Node) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%t", n.Kind, n.Algorithm.Impl, n.Algorithm.Params, n.Algorithm.Parallel)
	for _, section := range [][]scenario.DataSource{n.Inputs, n.Outputs, n.Train, n.Devel, n.Eval} {
		h.Write([]byte{0})
		for _, ds := range section {
			fmt.Fprintf(h, "|%s", ds.Key())
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// stateFromGraph serializes a freshly built plan.
func stateFromGraph(g *plan.Graph, scenarioPath string) *fileState {
	st := &fileState{Version: stateVersion, Scenario: scenarioPath}
	for _, n := range g.Ordered() {
		st.Nodes = append(st.Nodes, &nodeRecord{
			ID:          n.ID,
			Kind:        n.Kind.String(),
			Impl:        n.Algorithm.Impl,
			Params:      n.Algorithm.Params,
			Parallel:    n.Algorithm.Parallel,
			Inputs:      toSourceRecords(n.Inputs),
			Outputs:     toSourceRecords(n.Outputs),
			Train:       toSourceRecords(n.Train),
			Devel:       toSourceRecords(n.Devel),
			Eval:        toSourceRecords(n.Eval),
			Preds:       n.PredIDs(),
			Succs:       n.SuccIDs(),
			Status:      n.Status.String(),
			Fingerprint: Fingerprint(n),
		})
	}
	return st
}

// node rebuilds the planning form of a record for execution.
func (r *nodeRecord) node() (*plan.Node, error) {
	kind, err := scenario.ParseTaskKind(r.Kind)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", r.ID, err)
	}
	status, err := scenario.ParseStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", r.ID, err)
	}
	n := &plan.Node{
		ID:        r.ID,
		Kind:      kind,
		Algorithm: scenario.Algorithm{Impl: r.Impl, Params: r.Params, Parallel: r.Parallel},
		Status:    status,
		Preds:     make(map[string]struct{}, len(r.Preds)),
		Succs:     make(map[string]struct{}, len(r.Succs)),
	}
	for _, id := range r.Preds {
		n.Preds[id] = struct{}{}
	}
	for _, id := range r.Succs {
		n.Succs[id] = struct{}{}
	}
	for _, conv := range []struct {
		dst     *[]scenario.DataSource
		records []sourceRecord
	}{
		{&n.Inputs, r.Inputs},
		{&n.Outputs, r.Outputs},
		{&n.Train, r.Train},
		{&n.Devel, r.Devel},
		{&n.Eval, r.Eval},
	} {
		sources, err := fromSourceRecords(conv.records)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", r.ID, err)
		}
		*conv.dst = sources
	}
	return n, nil
}

// byID indexes the records for readiness checks and resets.
func (st *fileState) byID() map[string]*nodeRecord {
	idx := make(map[string]*nodeRecord, len(st.Nodes))
	for _, r := range st.Nodes {
		idx[r.ID] = r
	}
	return idx
}

// loadState reads the plan file. A missing file yields a nil state.
func (s *Store) loadState() (*fileState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading plan store %s: %w", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var st fileState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decoding plan store %s: %w", s.path, err)
	}
	if st.Version != stateVersion {
		return nil, fmt.Errorf("plan store %s has unsupported version %d", s.path, st.Version)
	}
	return &st, nil
}

// saveState writes the plan atomically: a temp file in the same directory
// followed by a rename, so a crash mid-write never loses or truncates the
// plan other processes will reload.
func (s *Store) saveState(st *fileState) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding plan store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("writing plan store: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing plan store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing plan store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing plan store: %w", err)
	}
	return nil
}
