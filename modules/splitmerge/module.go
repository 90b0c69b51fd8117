// Package splitmerge provides the "split" and "merge" manipulations the
// parallelizer brackets partitioned tasks with: split partitions each input
// line-wise into its part outputs, merge concatenates part inputs back into
// each declared output.
package splitmerge

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/taskmill/internal/ctxlog"
	"github.com/specialistvlad/taskmill/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type splitPerformer struct{}

// Perform splits every input into len(outputs)/len(inputs) contiguous
// line-wise parts. Outputs are grouped per input, in input order.
func (splitPerformer) Perform(ctx context.Context, inv *registry.Invocation) error {
	if len(inv.Inputs) == 0 || len(inv.Outputs) == 0 || len(inv.Outputs)%len(inv.Inputs) != 0 {
		return fmt.Errorf("split needs outputs to be a multiple of inputs, got %d inputs and %d outputs: %w",
			len(inv.Inputs), len(inv.Outputs), registry.ErrCardinality)
	}
	parts := len(inv.Outputs) / len(inv.Inputs)

	for i, in := range inv.Inputs {
		data, err := os.ReadFile(in.Path(inv.Workdir))
		if err != nil {
			return fmt.Errorf("reading %s: %w", in.Key(), registry.ErrIO)
		}
		lines := splitLines(data)
		chunk := (len(lines) + parts - 1) / parts
		for p := 0; p < parts; p++ {
			begin := p * chunk
			end := begin + chunk
			if begin > len(lines) {
				begin = len(lines)
			}
			if end > len(lines) {
				end = len(lines)
			}
			out := inv.Outputs[i*parts+p]
			if err := os.WriteFile(out.Path(inv.Workdir), joinLines(lines[begin:end]), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out.Key(), registry.ErrIO)
			}
		}
	}
	ctxlog.FromContext(ctx).Debug("Split sources.", "inputs", len(inv.Inputs), "parts", parts)
	return nil
}

type mergePerformer struct{}

// Perform merges len(inputs)/len(outputs) part inputs into each output,
// mirroring the grouping split produced.
func (mergePerformer) Perform(ctx context.Context, inv *registry.Invocation) error {
	if len(inv.Inputs) == 0 || len(inv.Outputs) == 0 || len(inv.Inputs)%len(inv.Outputs) != 0 {
		return fmt.Errorf("merge needs inputs to be a multiple of outputs, got %d inputs and %d outputs: %w",
			len(inv.Inputs), len(inv.Outputs), registry.ErrCardinality)
	}
	parts := len(inv.Inputs) / len(inv.Outputs)

	for i, out := range inv.Outputs {
		var data []byte
		for p := 0; p < parts; p++ {
			chunk, err := os.ReadFile(inv.Inputs[i*parts+p].Path(inv.Workdir))
			if err != nil {
				return fmt.Errorf("reading %s: %w", inv.Inputs[i*parts+p].Key(), registry.ErrIO)
			}
			data = append(data, chunk...)
		}
		if err := os.WriteFile(out.Path(inv.Workdir), data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out.Key(), registry.ErrIO)
		}
	}
	ctxlog.FromContext(ctx).Debug("Merged sources.", "outputs", len(inv.Outputs), "parts", parts)
	return nil
}

// splitLines keeps each line's trailing newline so a split/merge round trip
// is byte-identical.
func splitLines(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	var lines [][]byte
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			lines = append(lines, data)
			break
		}
		lines = append(lines, data[:i+1])
		data = data[i+1:]
	}
	return lines
}

func joinLines(lines [][]byte) []byte {
	var out []byte
	for _, l := range lines {
		out = append(out, l...)
	}
	return out
}

// Register registers the split and merge filters.
func (Module) Register(r *registry.Registry) {
	r.Register("split", func() registry.Performer { return splitPerformer{} })
	r.Register("merge", func() registry.Performer { return mergePerformer{} })
}
