// Package copyfile provides the "copy" manipulation: it concatenates all
// input sources and writes the result to every output source.
package copyfile

import (
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/taskmill/internal/ctxlog"
	"github.com/specialistvlad/taskmill/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type performer struct{}

// Perform concatenates the inputs into each output.
func (performer) Perform(ctx context.Context, inv *registry.Invocation) error {
	if len(inv.Inputs) == 0 || len(inv.Outputs) == 0 {
		return fmt.Errorf("copy needs at least one input and one output: %w", registry.ErrCardinality)
	}

	var data []byte
	for _, in := range inv.Inputs {
		chunk, err := os.ReadFile(in.Path(inv.Workdir))
		if err != nil {
			return fmt.Errorf("reading %s: %w", in.Key(), registry.ErrIO)
		}
		data = append(data, chunk...)
	}
	for _, out := range inv.Outputs {
		if err := os.WriteFile(out.Path(inv.Workdir), data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out.Key(), registry.ErrIO)
		}
	}
	ctxlog.FromContext(ctx).Debug("Copied sources.", "inputs", len(inv.Inputs), "outputs", len(inv.Outputs))
	return nil
}

// Register registers the copy filter.
func (Module) Register(r *registry.Registry) {
	r.Register("copy", func() registry.Performer { return performer{} })
}
