package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/taskmill/internal/ctxlog"
	"github.com/specialistvlad/taskmill/internal/scenario"
)

// patternErr is the single error category for every malformed or
// unsatisfiable wildcard declaration, identifying the offending task.
func patternErr(nodeID, format string, args ...any) error {
	return fmt.Errorf("pattern specification error in task %q: %s", nodeID, fmt.Sprintf(format, args...))
}

// expander walks the graph in topological order and rewrites wildcard
// template nodes into concrete clones. Tokens emitted by an expanded
// template's patterned outputs are recorded so dependent templates expand
// against the same token set instead of the filesystem.
type expander struct {
	g       *Graph
	workdir string
	// emitted maps a patterned output identity to the expansion tokens its
	// template produced, in clone order.
	emitted map[string][]string
	// removed collects template ids replaced by their clones.
	removed []string
}

// expandGraph resolves all wildcard templates in the graph. It relies on the
// pre-expansion dependency edges for ordering; the caller re-resolves edges
// afterwards from the rewritten identifiers.
func expandGraph(ctx context.Context, g *Graph, workdir string) error {
	order, err := g.topoOrder()
	if err != nil {
		return err
	}
	ex := &expander{g: g, workdir: workdir, emitted: make(map[string][]string)}
	for _, n := range order {
		if err := ex.expandNode(ctx, n); err != nil {
			return err
		}
	}
	for _, id := range ex.removed {
		g.Remove(id)
	}
	return nil
}

// consumedSections enumerates the node's input-purpose sections in a fixed
// order so occurrence references stay valid across clones.
func consumedSections(n *Node) []*[]scenario.DataSource {
	return []*[]scenario.DataSource{&n.Inputs, &n.Train, &n.Devel, &n.Eval}
}

// occRef addresses one pattern-bearing occurrence inside a node.
type occRef struct {
	section int
	index   int
	class   patternClass
	ds      scenario.DataSource
}

// cloneSpec captures the choices that produce one concrete clone: the shared
// transitive token, and one picked file per cartesian occurrence.
type cloneSpec struct {
	token    string
	hasToken bool
	combo    []string
	// picks maps an occurrence's position in the occ list to the matched
	// file path chosen for this clone.
	picks map[int]string
}

// expansionToken joins the clone's transitive and cartesian tokens into the
// value substituted into patterned outputs.
func (s cloneSpec) expansionToken() string {
	parts := make([]string, 0, 1+len(s.combo))
	if s.hasToken {
		parts = append(parts, s.token)
	}
	parts = append(parts, s.combo...)
	return strings.Join(parts, "_")
}

func (ex *expander) expandNode(ctx context.Context, n *Node) error {
	logger := ctxlog.FromContext(ctx)

	var occs []occRef
	var haveTransitive, haveLocal, haveCartesian bool
	for si, section := range consumedSections(n) {
		for i, ds := range *section {
			cls := classify(ds.ID)
			if cls == noPattern {
				continue
			}
			occs = append(occs, occRef{section: si, index: i, class: cls, ds: ds})
			switch cls {
			case transitive:
				haveTransitive = true
			case local:
				haveLocal = true
			case cartesian:
				haveCartesian = true
			}
		}
	}

	patternedOuts := 0
	for _, out := range n.Outputs {
		switch classify(out.ID) {
		case noPattern:
		case transitive:
			patternedOuts++
		default:
			return patternErr(n.ID, "outputs may only carry a single-star pattern, got %q", out.ID)
		}
	}

	if len(occs) == 0 {
		if patternedOuts > 0 {
			return patternErr(n.ID, "outputs are patterned but no input pattern explains the expansion")
		}
		return nil
	}

	if haveLocal && (haveTransitive || haveCartesian) {
		return patternErr(n.ID, "local (**) patterns cannot be mixed with transitive (*) or cartesian (***) patterns")
	}

	if haveLocal {
		if patternedOuts > 0 {
			return patternErr(n.ID, "outputs are patterned but local (**) patterns do not propagate")
		}
		return ex.expandLocal(ctx, n, occs)
	}

	if patternedOuts > 0 && patternedOuts < len(n.Outputs) {
		return patternErr(n.ID, "either all outputs must be patterned or none, got %d of %d", patternedOuts, len(n.Outputs))
	}

	specs, err := ex.cloneSpecs(n, occs)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		logger.Warn("Wildcard template matched nothing, no tasks generated.", "task", n.ID)
	}

	tokens := make([]string, 0, len(specs))
	for i, sp := range specs {
		clone := n.clone(fmt.Sprintf("%s#%d", n.ID, i))
		sections := consumedSections(clone)
		for oi, occ := range occs {
			target := &(*sections[occ.section])[occ.index]
			switch occ.class {
			case transitive:
				target.ID = substitute(occ.ds.ID, sp.token)
			case cartesian:
				target.ID = sp.picks[oi]
				target.Kind = scenario.FileSource
			}
		}
		for i := range clone.Outputs {
			if classify(clone.Outputs[i].ID) == transitive {
				clone.Outputs[i].ID = substitute(clone.Outputs[i].ID, sp.expansionToken())
			}
		}
		if err := ex.g.Add(clone); err != nil {
			return err
		}
		tokens = append(tokens, sp.expansionToken())
	}

	for _, out := range n.Outputs {
		if classify(out.ID) == transitive {
			ex.emitted[out.Key()] = tokens
		}
	}
	ex.removed = append(ex.removed, n.ID)

	logger.Debug("Expanded wildcard template.", "task", n.ID, "clones", len(specs))
	return nil
}

// expandLocal rewrites every ** occurrence in place with its full match
// list. The node itself is not replicated.
func (ex *expander) expandLocal(ctx context.Context, n *Node, occs []occRef) error {
	logger := ctxlog.FromContext(ctx)
	localAt := make(map[[2]int]bool, len(occs))
	for _, occ := range occs {
		if occ.ds.Kind != scenario.FileSource {
			return patternErr(n.ID, "local (**) patterns are only valid on file entries, got %s %q", occ.ds.Kind, occ.ds.ID)
		}
		localAt[[2]int{occ.section, occ.index}] = true
	}

	for si, section := range consumedSections(n) {
		if len(*section) == 0 {
			continue
		}
		rewritten := make([]scenario.DataSource, 0, len(*section))
		for i, ds := range *section {
			if !localAt[[2]int{si, i}] {
				rewritten = append(rewritten, ds)
				continue
			}
			p, err := parsePattern(ds.ID)
			if err != nil {
				return patternErr(n.ID, "%v", err)
			}
			matches, err := p.matchDir(ex.workdir)
			if err != nil {
				return patternErr(n.ID, "matching %q: %v", ds.ID, err)
			}
			if len(matches) == 0 {
				logger.Warn("Local pattern matched no files.", "task", n.ID, "pattern", ds.ID)
			}
			for _, m := range matches {
				rewritten = append(rewritten, scenario.DataSource{Kind: scenario.FileSource, ID: m.path})
			}
		}
		*section = rewritten
	}
	return nil
}

// cloneSpecs computes the expansion set: one spec per transitive token,
// multiplied by the match list of every cartesian occurrence in turn.
func (ex *expander) cloneSpecs(n *Node, occs []occRef) ([]cloneSpec, error) {
	var tokenSet []string
	haveTokens := false
	for _, occ := range occs {
		if occ.class != transitive {
			continue
		}
		set, err := ex.tokensFor(n, occ)
		if err != nil {
			return nil, err
		}
		if !haveTokens {
			tokenSet, haveTokens = set, true
			continue
		}
		// One expansion value drives all uses: occurrences must agree.
		tokenSet = intersect(tokenSet, set)
	}

	var specs []cloneSpec
	if haveTokens {
		for _, tok := range tokenSet {
			specs = append(specs, cloneSpec{token: tok, hasToken: true, picks: make(map[int]string)})
		}
	} else {
		specs = []cloneSpec{{picks: make(map[int]string)}}
	}

	for oi, occ := range occs {
		if occ.class != cartesian {
			continue
		}
		if occ.ds.Kind != scenario.FileSource {
			return nil, patternErr(n.ID, "cartesian (***) patterns are only valid on file entries, got %s %q", occ.ds.Kind, occ.ds.ID)
		}
		p, err := parsePattern(occ.ds.ID)
		if err != nil {
			return nil, patternErr(n.ID, "%v", err)
		}
		matches, err := p.matchDir(ex.workdir)
		if err != nil {
			return nil, patternErr(n.ID, "matching %q: %v", occ.ds.ID, err)
		}
		multiplied := make([]cloneSpec, 0, len(specs)*len(matches))
		for _, sp := range specs {
			for _, m := range matches {
				next := cloneSpec{
					token:    sp.token,
					hasToken: sp.hasToken,
					combo:    append(append([]string(nil), sp.combo...), m.token),
					picks:    make(map[int]string, len(sp.picks)+1),
				}
				for k, v := range sp.picks {
					next.picks[k] = v
				}
				next.picks[oi] = m.path
				multiplied = append(multiplied, next)
			}
		}
		specs = multiplied
	}
	return specs, nil
}

// tokensFor resolves the token set of one transitive occurrence: from the
// tokens an expanded predecessor emitted for the same identity, or from the
// filesystem for file entries.
func (ex *expander) tokensFor(n *Node, occ occRef) ([]string, error) {
	if inherited, ok := ex.emitted[occ.ds.Key()]; ok {
		return append([]string(nil), inherited...), nil
	}
	if occ.ds.Kind != scenario.FileSource {
		return nil, patternErr(n.ID, "pattern %q is neither a file nor produced by an expanded task", occ.ds.ID)
	}
	p, err := parsePattern(occ.ds.ID)
	if err != nil {
		return nil, patternErr(n.ID, "%v", err)
	}
	matches, err := p.matchDir(ex.workdir)
	if err != nil {
		return nil, patternErr(n.ID, "matching %q: %v", occ.ds.ID, err)
	}
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, m.token)
	}
	sort.Strings(tokens)
	return tokens, nil
}

// intersect keeps the elements of a that also appear in b, preserving a's
// order.
func intersect(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s] = struct{}{}
	}
	out := a[:0]
	for _, s := range a {
		if _, ok := inB[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
