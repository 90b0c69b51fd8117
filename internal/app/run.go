package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/taskmill/internal/ctxlog"
	"github.com/specialistvlad/taskmill/internal/plan"
	"github.com/specialistvlad/taskmill/internal/planstore"
	"github.com/specialistvlad/taskmill/internal/worker"
)

// Run executes the main application logic: load and validate the scenario,
// make sure the shared plan exists, apply any requested resets, then run the
// configured number of worker threads until the plan is exhausted.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	model, err := a.loader.Load(ctx, a.config.ScenarioPath, a.config.Workdir)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}
	a.logger.Info("Scenario loaded.", "path", a.config.ScenarioPath, "tasks", len(model.Tasks))

	buildPlan := func(ctx context.Context) (*plan.Graph, error) {
		return plan.Build(ctx, model, plan.Options{
			Workers: a.config.WorkerBudget(),
			Workdir: a.config.Workdir,
		})
	}

	if a.config.ParseOnly {
		g, err := buildPlan(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.outW, "scenario %s is valid: %d tasks, %d planned nodes\n",
			a.config.ScenarioPath, len(model.Tasks), g.Len())
		return nil
	}

	store := planstore.New(a.config.ScenarioPath)
	if err := store.EnsureBuilt(ctx, buildPlan); err != nil {
		return fmt.Errorf("building plan: %w", err)
	}

	resetSpecs := append([]string(nil), a.config.Reset...)
	fileSpecs, err := store.ConsumeResetSpecs(ctx)
	if err != nil {
		return err
	}
	resetSpecs = append(resetSpecs, fileSpecs...)

	if len(resetSpecs) > 0 {
		// The changed-tasks marker compares persisted fingerprints against
		// the plan the current scenario would produce.
		var fresh *plan.Graph
		for _, spec := range resetSpecs {
			if spec == planstore.ResetChanged {
				if fresh, err = buildPlan(ctx); err != nil {
					return err
				}
				break
			}
		}
		if err := store.Reset(ctx, resetSpecs, fresh); err != nil {
			return fmt.Errorf("resetting plan nodes: %w", err)
		}
	}

	a.logger.Info("Starting workers.", "threads", a.config.Threads, "plan", store.Path())
	var g errgroup.Group
	for i := 0; i < a.config.Threads; i++ {
		workerCtx := ctxlog.WithLogger(ctx, a.logger.With("worker", i))
		w := worker.New(store, a.registry, a.config.Workdir, a.config.RetrieveCount, worker.Backoff{})
		g.Go(func() error {
			// A worker error (plan store access failure) is fatal to that
			// worker only; the others keep draining the plan.
			if err := w.Run(workerCtx); err != nil {
				ctxlog.FromContext(workerCtx).Error("Worker terminated.", "error", err)
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("execution finished with worker errors: %w", err)
	}
	a.logger.Info("Execution finished.")
	return nil
}
