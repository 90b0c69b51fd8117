package scenario

import "fmt"

// Status is the execution state of a planned task node. Status only moves
// forward (Pending/Waiting -> InProgress -> Done|Failed); the sole exception
// is an operator reset, which moves a node back to Pending or Waiting.
type Status int

const (
	// Pending means the node has no unmet predecessors and may be claimed.
	Pending Status = iota
	// Waiting means at least one predecessor has not reported Done yet.
	Waiting
	// InProgress means a worker holds a claim on the node.
	InProgress
	// Done is the terminal success state.
	Done
	// Failed is the terminal failure state; dependents stay Waiting until
	// an operator resets the node.
	Failed
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == Done || s == Failed
}

// String returns the status name as persisted in the plan store.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Waiting:
		return "waiting"
	case InProgress:
		return "in-progress"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus is the inverse of String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending":
		return Pending, nil
	case "waiting":
		return Waiting, nil
	case "in-progress":
		return InProgress, nil
	case "done":
		return Done, nil
	case "failed":
		return Failed, nil
	}
	return 0, fmt.Errorf("unknown status %q", s)
}
