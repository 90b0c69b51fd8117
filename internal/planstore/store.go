// Package planstore persists the final task-node DAG and its per-node
// statuses in a single file shared by every cooperating process. All
// operations run under an exclusive OS advisory lock, so a claim observed by
// one process is visible to all others before the lock is released.
package planstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/xid"

	"github.com/specialistvlad/taskmill/internal/ctxlog"
	"github.com/specialistvlad/taskmill/internal/plan"
	"github.com/specialistvlad/taskmill/internal/scenario"
)

var (
	// ErrNothingReady means no node can be claimed right now but unfinished
	// nodes remain; callers back off and retry.
	ErrNothingReady = errors.New("no task ready yet")
	// ErrExhausted means every node is terminal or unreachable past a
	// failure; the plan is finished.
	ErrExhausted = errors.New("plan exhausted")
)

// lockRetryInterval paces lock acquisition attempts against other processes.
const lockRetryInterval = 25 * time.Millisecond

// Store is a handle on the persisted plan of one scenario. The backing file
// lives next to the scenario (<scenario>.todo); a sibling .lock file guards
// every access.
type Store struct {
	scenario string
	path     string
	// mu serializes the threads of this process; the file lock alone is not
	// enough, as a flock held by one goroutine is already held by all of
	// them.
	mu   sync.Mutex
	lock *flock.Flock
}

// New derives the store location from the scenario path.
func New(scenarioPath string) *Store {
	path := scenarioPath + ".todo"
	return &Store{
		scenario: scenarioPath,
		path:     path,
		lock:     flock.New(path + ".lock"),
	}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Claimed is a task node handed to exactly one worker, tagged with the claim
// token recorded in the store.
type Claimed struct {
	Node  *plan.Node
	Token string
}

// withLock runs fn holding the exclusive lock. fn receives the current state
// (nil when the backing file is empty) and returns the state to persist, or
// nil to leave the file untouched.
func (s *Store) withLock(ctx context.Context, fn func(st *fileState) (*fileState, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquiring plan store lock %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("acquiring plan store lock %s: not acquired", s.lock.Path())
	}
	defer s.lock.Unlock()

	st, err := s.loadState()
	if err != nil {
		return err
	}
	next, err := fn(st)
	if err != nil {
		return err
	}
	if next != nil {
		return s.saveState(next)
	}
	return nil
}

// EnsureBuilt makes the plan exist: if the backing file is empty the build
// callback runs and its result is persisted; otherwise the existing plan is
// kept. The emptiness check and the write happen inside one lock hold, so
// exactly one of any number of racing processes builds.
func (s *Store) EnsureBuilt(ctx context.Context, build func(context.Context) (*plan.Graph, error)) error {
	logger := ctxlog.FromContext(ctx)
	return s.withLock(ctx, func(st *fileState) (*fileState, error) {
		if st != nil {
			logger.Debug("Plan store already built.", "path", s.path, "nodes", len(st.Nodes))
			return nil, nil
		}
		g, err := build(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("Plan built and persisted.", "path", s.path, "nodes", g.Len())
		return stateFromGraph(g, s.scenario), nil
	})
}

// ready reports whether a record may be claimed: pending, or waiting with
// every predecessor done.
func ready(r *nodeRecord, idx map[string]*nodeRecord) bool {
	switch r.Status {
	case scenario.Pending.String():
		return true
	case scenario.Waiting.String():
		for _, pred := range r.Preds {
			p, ok := idx[pred]
			if !ok || p.Status != scenario.Done.String() {
				return false
			}
		}
		return true
	}
	return false
}

// deadSet returns the ids of nodes that can never run: everything reachable
// forward from a failed node.
func deadSet(st *fileState, idx map[string]*nodeRecord) map[string]struct{} {
	dead := make(map[string]struct{})
	var queue []string
	for _, r := range st.Nodes {
		if r.Status == scenario.Failed.String() {
			queue = append(queue, r.Succs...)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := dead[id]; seen {
			continue
		}
		dead[id] = struct{}{}
		if r, ok := idx[id]; ok {
			queue = append(queue, r.Succs...)
		}
	}
	return dead
}

// ClaimNext atomically claims one ready node.
func (s *Store) ClaimNext(ctx context.Context) (*Claimed, error) {
	claimed, err := s.ClaimBatch(ctx, 1)
	if err != nil {
		return nil, err
	}
	return claimed[0], nil
}

// ClaimBatch claims up to max ready nodes in one lock acquisition, flipping
// each to in-progress before the lock is released. Nodes are scanned in plan
// order, so the tie-break among simultaneously-ready nodes is the
// deterministic emission order. Returns ErrNothingReady or ErrExhausted when
// nothing was claimed.
func (s *Store) ClaimBatch(ctx context.Context, max int) ([]*Claimed, error) {
	if max < 1 {
		max = 1
	}
	var claimed []*Claimed
	err := s.withLock(ctx, func(st *fileState) (*fileState, error) {
		if st == nil {
			return nil, fmt.Errorf("plan store %s is empty; build the plan first", s.path)
		}
		idx := st.byID()
		dead := deadSet(st, idx)
		unfinished := false
		for _, r := range st.Nodes {
			if len(claimed) == max {
				break
			}
			if !ready(r, idx) {
				// A node downstream of a failure never becomes ready; it
				// does not keep the plan alive.
				_, isDead := dead[r.ID]
				if !isDead && r.Status != scenario.Done.String() && r.Status != scenario.Failed.String() {
					unfinished = true
				}
				continue
			}
			n, err := r.node()
			if err != nil {
				return nil, err
			}
			token := xid.New().String()
			r.Status = scenario.InProgress.String()
			r.Claim = token
			n.Status = scenario.InProgress
			claimed = append(claimed, &Claimed{Node: n, Token: token})
		}
		if len(claimed) == 0 {
			if unfinished {
				return nil, ErrNothingReady
			}
			return nil, ErrExhausted
		}
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Report records the outcome of a previously claimed node and clears its
// claim token. Only Done and Failed are valid outcomes.
func (s *Store) Report(ctx context.Context, id string, outcome scenario.Status) error {
	if !outcome.Terminal() {
		return fmt.Errorf("invalid outcome %s for node %q", outcome, id)
	}
	return s.withLock(ctx, func(st *fileState) (*fileState, error) {
		if st == nil {
			return nil, fmt.Errorf("plan store %s is empty", s.path)
		}
		r, ok := st.byID()[id]
		if !ok {
			return nil, fmt.Errorf("reported node %q not found in plan store", id)
		}
		if r.Status != scenario.InProgress.String() {
			return nil, fmt.Errorf("reported node %q is %s, not in-progress", id, r.Status)
		}
		r.Status = outcome.String()
		r.Claim = ""
		return st, nil
	})
}

// Snapshot returns the persisted records' ids and statuses, mostly for
// operators and tests inspecting a plan.
func (s *Store) Snapshot(ctx context.Context) (map[string]scenario.Status, error) {
	out := make(map[string]scenario.Status)
	err := s.withLock(ctx, func(st *fileState) (*fileState, error) {
		if st == nil {
			return nil, nil
		}
		for _, r := range st.Nodes {
			status, err := scenario.ParseStatus(r.Status)
			if err != nil {
				return nil, err
			}
			out[r.ID] = status
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
