// Package registry maps algorithm implementation names to their Go
// factories. Registration happens once at startup; lookups during execution
// fail closed with an unknown-algorithm error instead of a reflective miss.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/specialistvlad/taskmill/internal/scenario"
)

// Categorized task failure classes. Implementations wrap one of these so the
// worker can report a recognizable failure category instead of a raw crash.
var (
	// ErrCardinality marks a wrong number of inputs, outputs or partitions.
	ErrCardinality = errors.New("input/output cardinality")
	// ErrParams marks an invalid or missing algorithm parameter.
	ErrParams = errors.New("invalid parameters")
	// ErrIO marks an I/O failure while running a step.
	ErrIO = errors.New("task i/o failure")
)

// Invocation carries everything an algorithm implementation needs to run one
// planned node.
type Invocation struct {
	TaskID  string
	Params  map[string]string
	Workdir string

	Inputs  []scenario.DataSource
	Outputs []scenario.DataSource
	Train   []scenario.DataSource
	Devel   []scenario.DataSource
	Eval    []scenario.DataSource
}

// Performer is the execution contract every algorithm implementation
// satisfies: fully synchronous, idempotent with respect to re-running on the
// same inputs, and signalling failure through a categorized error.
type Performer interface {
	Perform(ctx context.Context, inv *Invocation) error
}

// Factory constructs a fresh Performer per invocation.
type Factory func() Performer

// Module is the interface algorithm packages implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the algorithm factories for a single application instance.
type Registry struct {
	factories map[string]Factory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under an implementation name. Registering the same
// name twice is a programmer error and panics at startup.
func (r *Registry) Register(name string, f Factory) {
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("algorithm %q already registered", name))
	}
	slog.Debug("Registering algorithm.", "name", name)
	r.factories[name] = f
}

// Lookup returns a new Performer for the named implementation.
func (r *Registry) Lookup(name string) (Performer, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %q", name)
	}
	return f(), nil
}

// ParseParams splits a free-form parameter string of whitespace-separated
// key=value pairs into a map. A bare token becomes a key with an empty value.
func ParseParams(params string) map[string]string {
	out := make(map[string]string)
	for _, tok := range strings.Fields(params) {
		k, v, _ := strings.Cut(tok, "=")
		out[k] = v
	}
	return out
}
