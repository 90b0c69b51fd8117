package plan

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/taskmill/internal/fsutil"
)

// patternClass identifies the wildcard family of one data-source occurrence.
// Exactly one class is recognized per occurrence string, keyed on the length
// of its longest star run.
type patternClass int

const (
	// noPattern marks a concrete identifier.
	noPattern patternClass = iota
	// transitive (*) binds a single expansion token shared by every
	// occurrence of the same pattern in the node and its dependents.
	transitive
	// local (**) expands in place to the full list of matched paths and is
	// never propagated.
	local
	// cartesian (***) multiplies the expansion set by its own match list.
	cartesian
)

// classify inspects the longest consecutive star run of an identifier.
func classify(id string) patternClass {
	longest, run := 0, 0
	for _, r := range id {
		if r == '*' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	switch {
	case longest == 0:
		return noPattern
	case longest == 1:
		return transitive
	case longest == 2:
		return local
	default:
		return cartesian
	}
}

// pattern is a parsed wildcard identifier: the directory part, and the fixed
// prefix and suffix around the (collapsed) star run of the filename part.
type pattern struct {
	raw    string
	dir    string
	prefix string
	suffix string
}

// parsePattern splits the identifier into directory and filename pattern and
// collapses the star run to a single placeholder. Matching operates on file
// names only, so a wildcard confined to the directory part is rejected.
func parsePattern(raw string) (pattern, error) {
	dir, base := filepath.Split(raw)
	collapsed := collapseStars(base)
	star := strings.IndexByte(collapsed, '*')
	if star < 0 {
		return pattern{}, fmt.Errorf("wildcard in %q is confined to the directory part; only file names are matched", raw)
	}
	return pattern{
		raw:    raw,
		dir:    filepath.Clean(dir),
		prefix: collapsed[:star],
		suffix: collapsed[star+1:],
	}, nil
}

// collapseStars reduces every run of stars to a single star.
func collapseStars(s string) string {
	var b strings.Builder
	prevStar := false
	for _, r := range s {
		if r == '*' {
			if prevStar {
				continue
			}
			prevStar = true
		} else {
			prevStar = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fileMatch is one directory entry accepted by a pattern.
type fileMatch struct {
	// token is the substring matched by the placeholder.
	token string
	// path is the full path of the matched file.
	path string
}

// matchDir lists the pattern's directory (anchored at workdir when relative)
// and returns every entry whose name carries the fixed prefix and suffix.
// A name matches iff it starts with the prefix, ends with the suffix, and is
// at least as long as both combined; the middle substring is the token.
func (p pattern) matchDir(workdir string) ([]fileMatch, error) {
	dir := p.dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workdir, dir)
	}
	names, err := fsutil.ListFileNames(dir)
	if err != nil {
		return nil, err
	}

	var matches []fileMatch
	for _, name := range names {
		if len(name) < len(p.prefix)+len(p.suffix) {
			continue
		}
		if !strings.HasPrefix(name, p.prefix) || !strings.HasSuffix(name, p.suffix) {
			continue
		}
		matches = append(matches, fileMatch{
			token: name[len(p.prefix) : len(name)-len(p.suffix)],
			path:  filepath.Join(p.dir, name),
		})
	}
	return matches, nil
}

// substitute replaces the identifier's star run with the expansion token.
func substitute(raw, token string) string {
	return strings.Replace(collapseStars(raw), "*", token, 1)
}
