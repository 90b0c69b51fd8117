package scenario

import (
	"fmt"
	"path/filepath"
)

// SourceKind discriminates the three data source variants a task can consume
// or produce.
type SourceKind int

const (
	FileSource SourceKind = iota
	DatasetSource
	FeatureSource
)

// String returns the kind's name as it appears in scenario documents.
func (k SourceKind) String() string {
	switch k {
	case FileSource:
		return "file"
	case DatasetSource:
		return "dataset"
	case FeatureSource:
		return "feature"
	}
	return fmt.Sprintf("SourceKind(%d)", int(k))
}

// ParseSourceKind is the inverse of String.
func ParseSourceKind(s string) (SourceKind, error) {
	switch s {
	case "file":
		return FileSource, nil
	case "dataset":
		return DatasetSource, nil
	case "feature":
		return FeatureSource, nil
	}
	return 0, fmt.Errorf("unknown data source kind %q", s)
}

// Purpose records whether a data source occurrence was declared as a task
// input or output.
type Purpose int

const (
	Input Purpose = iota
	Output
)

// DataSource is a typed, identified unit of data. Identity is the
// (Kind, ID) pair; two sources with the same pair refer to the same data.
type DataSource struct {
	Kind SourceKind
	ID   string
}

// Key returns the canonical identity string used by occurrence tables.
func (ds DataSource) Key() string {
	return ds.Kind.String() + ":" + ds.ID
}

// Split derives k disjoint part sources from ds. Part identifiers are the
// original suffixed with a part index, so parts of the same source never
// collide with each other or with the original.
func (ds DataSource) Split(k int) []DataSource {
	parts := make([]DataSource, k)
	for i := 0; i < k; i++ {
		parts[i] = DataSource{Kind: ds.Kind, ID: fmt.Sprintf("%s.part%d", ds.ID, i)}
	}
	return parts
}

// Path maps the source to its location on disk. File sources are taken as
// paths (relative ones anchored at workdir); datasets and features are
// materialized as files under workdir with a kind-specific extension.
func (ds DataSource) Path(workdir string) string {
	switch ds.Kind {
	case DatasetSource:
		return filepath.Join(workdir, ds.ID+".ds")
	case FeatureSource:
		return filepath.Join(workdir, ds.ID+".ft")
	}
	if filepath.IsAbs(ds.ID) {
		return ds.ID
	}
	return filepath.Join(workdir, ds.ID)
}
