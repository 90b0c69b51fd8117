// Package linecount provides the "linecount" computation: a minimal model
// that records, for every training source, the number of lines it contains.
package linecount

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/taskmill/internal/ctxlog"
	"github.com/specialistvlad/taskmill/internal/registry"
	"github.com/specialistvlad/taskmill/internal/scenario"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type performer struct{}

// Perform counts lines per train source and writes an id-to-count table to
// every output.
func (performer) Perform(ctx context.Context, inv *registry.Invocation) error {
	if len(inv.Train) == 0 || len(inv.Outputs) == 0 {
		return fmt.Errorf("linecount needs training data and at least one output: %w", registry.ErrCardinality)
	}

	var report bytes.Buffer
	count := func(sources []scenario.DataSource) error {
		for _, ds := range sources {
			data, err := os.ReadFile(ds.Path(inv.Workdir))
			if err != nil {
				return fmt.Errorf("reading %s: %w", ds.Key(), registry.ErrIO)
			}
			fmt.Fprintf(&report, "%s\t%d\n", ds.ID, bytes.Count(data, []byte{'\n'}))
		}
		return nil
	}
	for _, section := range [][]scenario.DataSource{inv.Train, inv.Devel, inv.Eval} {
		if err := count(section); err != nil {
			return err
		}
	}

	for _, out := range inv.Outputs {
		if err := os.WriteFile(out.Path(inv.Workdir), report.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out.Key(), registry.ErrIO)
		}
	}
	ctxlog.FromContext(ctx).Debug("Line counts written.", "sources", len(inv.Train)+len(inv.Devel)+len(inv.Eval))
	return nil
}

// Register registers the linecount algorithm.
func (Module) Register(r *registry.Registry) {
	r.Register("linecount", func() registry.Performer { return performer{} })
}
