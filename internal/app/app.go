package app

import (
	"io"
	"log/slog"

	"github.com/specialistvlad/taskmill/internal/registry"
	"github.com/specialistvlad/taskmill/internal/scenario/hclscen"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	loader   *hclscen.Loader
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and registry. A
// duplicate module registration is a programmer error and panics here,
// before any plan work begins.
func NewApp(outW io.Writer, config *Config, modules ...registry.Module) *App {
	logger := newLogger(config.Verbosity, outW)

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("Algorithm modules registered.", "count", len(modules))

	return &App{
		outW:     outW,
		logger:   logger,
		config:   config,
		registry: reg,
		loader:   hclscen.NewLoader(),
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
