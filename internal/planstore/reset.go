package planstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/specialistvlad/taskmill/internal/ctxlog"
	"github.com/specialistvlad/taskmill/internal/plan"
	"github.com/specialistvlad/taskmill/internal/scenario"
)

// Reset markers accepted alongside plain id prefixes.
const (
	// ResetAll resets every node in the plan.
	ResetAll = "!"
	// ResetChanged resets only nodes whose definition fingerprint differs
	// from the current scenario's plan.
	ResetChanged = "#"
)

// ResetFile returns the path of the optional reset-instruction file. An
// operator drops reset specs there (same syntax as the --reset flag,
// separated by whitespace or commas) to have the next run apply them without
// changing its command line.
func (s *Store) ResetFile() string {
	return s.scenario + ".reset"
}

// ConsumeResetSpecs reads the reset-instruction file if present and removes
// it, so the instructions apply to exactly one plan build. A missing file
// yields no specs and no error.
func (s *Store) ConsumeResetSpecs(ctx context.Context) ([]string, error) {
	data, err := os.ReadFile(s.ResetFile())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading reset instructions %s: %w", s.ResetFile(), err)
	}
	if err := os.Remove(s.ResetFile()); err != nil {
		return nil, fmt.Errorf("consuming reset instructions %s: %w", s.ResetFile(), err)
	}

	specs := strings.FieldsFunc(string(data), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	ctxlog.FromContext(ctx).Info("Reset instructions consumed.", "path", s.ResetFile(), "specs", len(specs))
	return specs, nil
}

// Reset moves the selected nodes back to a claimable status, in place and
// under the store lock; the plan file is patched, never rebuilt, so no node
// is lost or duplicated. Selection is by id prefix, ResetAll, or
// ResetChanged; the reset cascades forward so every transitive dependent of
// a reset node returns to Waiting. fresh is the plan built from the current
// scenario; it is only consulted for ResetChanged and may be nil otherwise.
func (s *Store) Reset(ctx context.Context, specs []string, fresh *plan.Graph) error {
	if len(specs) == 0 {
		return nil
	}
	logger := ctxlog.FromContext(ctx)

	return s.withLock(ctx, func(st *fileState) (*fileState, error) {
		if st == nil {
			// Nothing persisted yet; the next build starts clean anyway.
			return nil, nil
		}

		selected := make(map[string]bool)
		for _, spec := range specs {
			switch spec {
			case ResetAll:
				for _, r := range st.Nodes {
					selected[r.ID] = true
				}
			case ResetChanged:
				if fresh == nil {
					return nil, fmt.Errorf("changed-tasks reset requires the current scenario plan")
				}
				for _, r := range st.Nodes {
					n := fresh.Node(r.ID)
					if n == nil || Fingerprint(n) != r.Fingerprint {
						selected[r.ID] = true
					}
				}
			default:
				found := false
				for _, r := range st.Nodes {
					if strings.HasPrefix(r.ID, spec) {
						selected[r.ID] = true
						found = true
					}
				}
				if !found {
					logger.Warn("Reset prefix matched no nodes.", "prefix", spec)
				}
			}
		}
		if len(selected) == 0 {
			return nil, nil
		}

		// Cascade forward: dependents of a reset node must re-run too.
		idx := st.byID()
		queue := make([]string, 0, len(selected))
		for id := range selected {
			queue = append(queue, id)
		}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			r, ok := idx[id]
			if !ok {
				continue
			}
			for _, succ := range r.Succs {
				if !selected[succ] {
					selected[succ] = true
					queue = append(queue, succ)
				}
			}
		}

		count := 0
		for _, r := range st.Nodes {
			if !selected[r.ID] {
				continue
			}
			if len(r.Preds) == 0 {
				r.Status = scenario.Pending.String()
			} else {
				r.Status = scenario.Waiting.String()
			}
			r.Claim = ""
			count++
		}
		logger.Info("Reset plan nodes.", "count", count)
		return st, nil
	})
}
