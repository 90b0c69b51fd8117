// Package scenario defines the typed in-memory representation of a parsed
// batch-processing scenario: an ordered collection of tasks, each declaring
// the data sources it consumes and produces and the algorithm that runs it.
// It is the contract between the scenario loader and the planning pipeline.
package scenario

import "fmt"

// TaskKind is the tagged discriminator over the three task families. All
// kind-specific validation lives in Task.Validate, parameterized by kind,
// instead of a subclass hierarchy.
type TaskKind int

const (
	Computation TaskKind = iota
	Manipulation
	Evaluation
)

// String returns the kind's name as it appears in scenario documents.
func (k TaskKind) String() string {
	switch k {
	case Computation:
		return "computation"
	case Manipulation:
		return "manipulation"
	case Evaluation:
		return "evaluation"
	}
	return fmt.Sprintf("TaskKind(%d)", int(k))
}

// ParseTaskKind is the inverse of String.
func ParseTaskKind(s string) (TaskKind, error) {
	switch s {
	case "computation":
		return Computation, nil
	case "manipulation":
		return Manipulation, nil
	case "evaluation":
		return Evaluation, nil
	}
	return 0, fmt.Errorf("unknown task kind %q", s)
}

// Algorithm describes how a task runs: the registered implementation name,
// a free-form parameter string, and whether the task may be partitioned
// across the worker budget.
type Algorithm struct {
	Impl     string
	Params   string
	Parallel bool
}

// Task is one declared unit of work. Inputs and Outputs are immutable after
// declaration except for wildcard expansion rewriting identifiers and
// parallelization replacing the train/devel/eval members with single-element
// slices.
type Task struct {
	ID        string
	Kind      TaskKind
	Algorithm Algorithm

	Inputs  []DataSource
	Outputs []DataSource

	// Train, Devel and Eval are computation-only partitions. When Devel or
	// Eval is present its length must match Train's.
	Train []DataSource
	Devel []DataSource
	Eval  []DataSource
}

// Validate checks the kind-parameterized task invariants.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task without an id")
	}
	if t.Algorithm.Impl == "" {
		return fmt.Errorf("task %q: missing algorithm implementation", t.ID)
	}
	if t.Kind == Manipulation && t.Algorithm.Parallel {
		return fmt.Errorf("task %q: manipulation tasks cannot be parallelizable", t.ID)
	}
	if t.Kind != Computation {
		if len(t.Train) > 0 || len(t.Devel) > 0 || len(t.Eval) > 0 {
			return fmt.Errorf("task %q: train/devel/eval sections are only valid on computation tasks", t.ID)
		}
		return nil
	}
	if len(t.Devel) > 0 && len(t.Devel) != len(t.Train) {
		return fmt.Errorf("task %q: devel count %d does not match train count %d", t.ID, len(t.Devel), len(t.Train))
	}
	if len(t.Eval) > 0 && len(t.Eval) != len(t.Train) {
		return fmt.Errorf("task %q: eval count %d does not match train count %d", t.ID, len(t.Eval), len(t.Train))
	}
	return nil
}

// Model is the ordered scenario a loader produces. Order is the document
// order and is preserved through planning for deterministic emission.
type Model struct {
	Tasks []*Task
}

// Validate checks document-level invariants and every task's own.
func (m *Model) Validate() error {
	seen := make(map[string]struct{}, len(m.Tasks))
	for _, t := range m.Tasks {
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		seen[t.ID] = struct{}{}
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}
