package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ScenarioPath locates the scenario document; the plan store lives next
	// to it.
	ScenarioPath string
	// Workdir anchors relative data source paths and wildcard matching.
	Workdir string

	// Threads is the number of worker threads this process runs.
	Threads int
	// Instances is the operator-declared count of cooperating processes.
	// It only informs the parallelization budget (Threads * Instances).
	Instances int
	// Verbosity ranges 0 (errors only) to 4 (full debug).
	Verbosity int
	// Reset lists task-id prefixes (or the '#'/'!' markers) whose nodes are
	// moved back to a claimable status before execution.
	Reset []string
	// RetrieveCount is the number of nodes claimed per plan store access.
	RetrieveCount int
	// ParseOnly validates the scenario and the plan without executing.
	ParseOnly bool
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ScenarioPath == "" {
		return nil, errors.New("a scenario path is required")
	}
	if cfg.Threads < 1 {
		return nil, fmt.Errorf("threads must be at least 1, got %d", cfg.Threads)
	}
	if cfg.Instances < 1 {
		return nil, fmt.Errorf("instances must be at least 1, got %d", cfg.Instances)
	}
	if cfg.Verbosity < 0 || cfg.Verbosity > 4 {
		return nil, fmt.Errorf("verbosity must be between 0 and 4, got %d", cfg.Verbosity)
	}
	if cfg.RetrieveCount < 1 {
		return nil, fmt.Errorf("retrieve_count must be at least 1, got %d", cfg.RetrieveCount)
	}
	if cfg.Workdir == "" {
		cfg.Workdir = "."
	}
	return &cfg, nil
}

// WorkerBudget is the global parallelization budget the planner partitions
// parallelizable tasks across.
func (c *Config) WorkerBudget() int {
	return c.Threads * c.Instances
}
