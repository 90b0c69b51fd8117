// Package wordstats provides the "wordstats" evaluation metric: a token
// frequency report over all input sources.
package wordstats

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/taskmill/internal/ctxlog"
	"github.com/specialistvlad/taskmill/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type performer struct{}

// Perform writes the `top` most frequent tokens (default 10) of the inputs
// to every output, one "token count" line each. Ties break alphabetically.
func (performer) Perform(ctx context.Context, inv *registry.Invocation) error {
	if len(inv.Inputs) == 0 || len(inv.Outputs) == 0 {
		return fmt.Errorf("wordstats needs at least one input and one output: %w", registry.ErrCardinality)
	}

	top := 10
	if raw, ok := inv.Params["top"]; ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return fmt.Errorf("top must be a positive integer, got %q: %w", raw, registry.ErrParams)
		}
		top = parsed
	}

	freq := make(map[string]int)
	for _, in := range inv.Inputs {
		data, err := os.ReadFile(in.Path(inv.Workdir))
		if err != nil {
			return fmt.Errorf("reading %s: %w", in.Key(), registry.ErrIO)
		}
		for _, tok := range strings.Fields(string(data)) {
			freq[tok]++
		}
	}

	tokens := make([]string, 0, len(freq))
	for tok := range freq {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if freq[tokens[i]] != freq[tokens[j]] {
			return freq[tokens[i]] > freq[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	if len(tokens) > top {
		tokens = tokens[:top]
	}

	var report bytes.Buffer
	for _, tok := range tokens {
		fmt.Fprintf(&report, "%s %d\n", tok, freq[tok])
	}
	for _, out := range inv.Outputs {
		if err := os.WriteFile(out.Path(inv.Workdir), report.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out.Key(), registry.ErrIO)
		}
	}
	ctxlog.FromContext(ctx).Debug("Word statistics written.", "tokens", len(tokens))
	return nil
}

// Register registers the wordstats metric.
func (Module) Register(r *registry.Registry) {
	r.Register("wordstats", func() registry.Performer { return performer{} })
}
