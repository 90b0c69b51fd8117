// Package worker implements the per-thread scheduling loop: claim a ready
// node from the plan store, execute it through the algorithm registry,
// report the outcome, repeat until the plan is exhausted.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/specialistvlad/taskmill/internal/ctxlog"
	"github.com/specialistvlad/taskmill/internal/planstore"
	"github.com/specialistvlad/taskmill/internal/registry"
	"github.com/specialistvlad/taskmill/internal/scenario"
)

// Backoff paces an idle worker when nothing is ready. The jitter spreads
// wake-ups so many idle workers do not hammer the store lock in lockstep.
type Backoff struct {
	Base   time.Duration
	Jitter time.Duration
}

// DefaultBackoff is used when the caller leaves the backoff zeroed.
var DefaultBackoff = Backoff{Base: 500 * time.Millisecond, Jitter: 500 * time.Millisecond}

func (b Backoff) next() time.Duration {
	d := b.Base
	if b.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(b.Jitter)))
	}
	return d
}

// Worker runs one claim/execute/report loop.
type Worker struct {
	store    *planstore.Store
	registry *registry.Registry
	workdir  string
	batch    int
	backoff  Backoff
}

// New constructs a worker. batch is the number of nodes claimed per lock
// acquisition; values below 1 are treated as 1.
func New(store *planstore.Store, reg *registry.Registry, workdir string, batch int, backoff Backoff) *Worker {
	if batch < 1 {
		batch = 1
	}
	if backoff.Base <= 0 {
		backoff = DefaultBackoff
	}
	return &Worker{store: store, registry: reg, workdir: workdir, batch: batch, backoff: backoff}
}

// Run loops until the plan is exhausted or the context is cancelled. A task
// failure marks its node Failed and the loop moves on; dependents of that
// node simply never become ready. An error talking to the plan store itself
// is fatal to this worker only and is returned.
func (w *Worker) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		claimed, err := w.store.ClaimBatch(ctx, w.batch)
		switch {
		case errors.Is(err, planstore.ErrExhausted):
			logger.Debug("Plan exhausted, worker finished.")
			return nil
		case errors.Is(err, planstore.ErrNothingReady):
			delay := w.backoff.next()
			logger.Debug("Nothing ready, backing off.", "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		case err != nil:
			return fmt.Errorf("claiming from plan store: %w", err)
		}

		for _, c := range claimed {
			outcome := scenario.Done
			if err := w.execute(ctx, c); err != nil {
				logger.Error("Task failed.", "task", c.Node.ID, "error", err)
				outcome = scenario.Failed
			} else {
				logger.Info("Task done.", "task", c.Node.ID)
			}
			if err := w.store.Report(ctx, c.Node.ID, outcome); err != nil {
				return fmt.Errorf("reporting %s for %q: %w", outcome, c.Node.ID, err)
			}
		}
	}
}

// execute resolves the node's algorithm and performs it.
func (w *Worker) execute(ctx context.Context, c *planstore.Claimed) error {
	n := c.Node
	logger := ctxlog.FromContext(ctx).With("task", n.ID, "claim", c.Token)
	logger.Info("Starting task.", "algorithm", n.Algorithm.Impl)

	performer, err := w.registry.Lookup(n.Algorithm.Impl)
	if err != nil {
		return err
	}
	inv := &registry.Invocation{
		TaskID:  n.ID,
		Params:  registry.ParseParams(n.Algorithm.Params),
		Workdir: w.workdir,
		Inputs:  n.Inputs,
		Outputs: n.Outputs,
		Train:   n.Train,
		Devel:   n.Devel,
		Eval:    n.Eval,
	}
	return performer.Perform(ctxlog.WithLogger(ctx, logger), inv)
}
