// Package fsutil provides file system utility functions.
package fsutil

import (
	"os"
	"sort"
)

// ListFileNames returns the names of all regular files directly inside dir,
// sorted lexicographically. Subdirectories are skipped; wildcard matching
// operates on a single directory level.
func ListFileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
