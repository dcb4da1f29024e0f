// Package crcache implements the CRCache state machine of spec.md §4.8: one
// instance per sub-block builder, each owning a scratch CacheDriver and a
// reference to the shared master store, advanced by an external scheduler
// polling sync_* predicates rather than by any consensus/replication layer
// of its own (spec.md §1 places that outside scope).
//
// The Apply-by-state-switch shape here is adapted from
// cuemby-warren/pkg/manager/fsm.go's WarrenFSM.Apply: that FSM dispatches a
// Raft log command by a string tag under a mutex; this one dispatches a
// CRCache lifecycle event by current State under the same mutex discipline,
// since there is no log to replay here — the scheduler supplies the event
// ordering instead.
package crcache

import (
	"sort"
	"sync"

	"github.com/quailmother/contracting/pkg/cache"
	"github.com/quailmother/contracting/pkg/contractstore"
	"github.com/quailmother/contracting/pkg/encoding"
	"github.com/quailmother/contracting/pkg/kv"
	"github.com/quailmother/contracting/pkg/sandbox"
)

// SchedulerView is what the external scheduler reports about this
// instance's position among its peers; CRCache has no visibility into the
// sub-block stack beyond what the scheduler tells it and the shared
// barrier macros.
type SchedulerView struct {
	// TopOfStack is true once this cache is next in line to commit.
	TopOfStack bool
	// NumSBB is the number of sub-block builders every macro must reach.
	NumSBB uint64
}

// Cache is one CRCache instance.
type Cache struct {
	Session string

	Scratch      *cache.Driver         // per-instance scratch CacheDriver
	ScratchStore *contractstore.Driver // typed view over Scratch, for the Executor
	Executor     *sandbox.Executor     // wired to ScratchStore/loader over Scratch
	ScratchKV    kv.Store              // the scratch database Scratch wraps; flushed on CLEAN

	Master kv.Store // the shared master store, written through at Merge

	Macros *Macros

	mu           sync.Mutex
	state        State
	bag          []sandbox.Transaction
	effectiveSet map[string][]byte
	original     map[string]cache.OriginalEntry
}

// New wires a CRCache instance. session identifies this conflict-resolution
// round; every CRCache instance racing to merge the same round must share
// it so the barrier macros line up.
func New(session string, scratch *cache.Driver, scratchStore *contractstore.Driver, scratchKV kv.Store, ex *sandbox.Executor, master kv.Store, macros *Macros) *Cache {
	return &Cache{
		Session:      session,
		Scratch:      scratch,
		ScratchStore: scratchStore,
		Executor:     ex,
		ScratchKV:    scratchKV,
		Master:       master,
		Macros:       macros,
		state:        CLEAN,
	}
}

// State reports the current FSM state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetBag installs bag as this round's transaction set: CLEAN -> BAG_SET.
func (c *Cache) SetBag(bag []sandbox.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CLEAN {
		return &ErrWrongState{Want: CLEAN, Have: c.state, Op: "SetBag"}
	}
	c.bag = bag
	c.state = BagSet
	return nil
}

// Execute runs the installed bag through the Executor and bumps __exec__
// once: BAG_SET -> EXECUTED.
func (c *Cache) Execute() ([]*sandbox.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != BagSet {
		return nil, &ErrWrongState{Want: BagSet, Have: c.state, Op: "Execute"}
	}
	results := c.Executor.ExecuteBag(c.bag)
	if _, err := c.Macros.Bump(c.Session, MacroExec); err != nil {
		return nil, err
	}
	c.state = Executed
	return results, nil
}

// SyncExecution transitions EXECUTED -> COMMITTED once view reports this
// cache at the top of the sub-block stack and __exec__ has reached
// view.NumSBB across all peers. On transition, it captures the cache's
// effective write set (and the original values Merge will later check for
// conflicts) in this Cache's own fields for Merge to use. Nothing is
// written to any store at this step, so downstream caches do not see the
// set before Merge.
func (c *Cache) SyncExecution(view SchedulerView) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Executed {
		return false, nil
	}
	n, err := c.Macros.Count(c.Session, MacroExec)
	if err != nil {
		return false, err
	}
	if !view.TopOfStack || n < view.NumSBB {
		return false, nil
	}
	c.effectiveSet = effectiveSetOf(c.Scratch)
	c.original = c.Scratch.OriginalValues()
	c.state = Committed
	return true, nil
}

// SyncMergeReady advances COMMITTED -> CR_STARTED (bumping __cr__ once on
// first entry, mirroring Execute's __exec__ bump) and then CR_STARTED ->
// READY_TO_MERGE once __cr__ reaches numSBB.
func (c *Cache) SyncMergeReady(numSBB uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Committed {
		if _, err := c.Macros.Bump(c.Session, MacroCR); err != nil {
			return false, err
		}
		c.state = CRStarted
	}
	if c.state != CRStarted {
		return false, nil
	}

	n, err := c.Macros.Count(c.Session, MacroCR)
	if err != nil {
		return false, err
	}
	if n < numSBB {
		return false, nil
	}
	c.state = ReadyToMerge
	return true, nil
}

// Merge writes the cache's effective set through to master and transitions
// READY_TO_MERGE -> MERGED -> RESET (bumping __reset__ once on entry, same
// pattern as Execute/SyncMergeReady). Conflict handling is fail-fast: any
// key whose original_values disagree with master's current value aborts
// the whole merge with ErrMergeConflict and performs no partial write.
func (c *Cache) Merge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ReadyToMerge {
		return &ErrWrongState{Want: ReadyToMerge, Have: c.state, Op: "Merge"}
	}

	var conflicts []string
	for k, orig := range c.original {
		cur, exists, err := c.Master.Get(k)
		if err != nil {
			return err
		}
		if orig.Exists != exists || (exists && string(orig.Value) != string(cur)) {
			conflicts = append(conflicts, k)
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return &ErrMergeConflict{Keys: conflicts}
	}

	keys := make([]string, 0, len(c.effectiveSet))
	for k := range c.effectiveSet {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := c.effectiveSet[k]
		decoded, err := encoding.Decode(v)
		if err == nil && encoding.IsNull(decoded) {
			if err := c.Master.Delete(k); err != nil {
				return err
			}
			continue
		}
		if err := c.Master.Set(k, v); err != nil {
			return err
		}
	}

	c.state = Merged
	if _, err := c.Macros.Bump(c.Session, MacroReset); err != nil {
		return err
	}
	c.state = Reset
	return nil
}

// SyncReset advances RESET -> CLEAN once __reset__ reaches numSBB, then
// flushes the scratch database so the instance is ready for the next
// round.
func (c *Cache) SyncReset(numSBB uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Reset {
		return false, nil
	}
	n, err := c.Macros.Count(c.Session, MacroReset)
	if err != nil {
		return false, err
	}
	if n < numSBB {
		return false, nil
	}
	if err := c.ScratchKV.Flush(); err != nil {
		return false, err
	}
	c.Scratch.Revert(0)
	c.bag = nil
	c.effectiveSet = nil
	c.original = nil
	c.state = CLEAN
	return true, nil
}

func effectiveSetOf(c *cache.Driver) map[string][]byte {
	out := map[string][]byte{}
	frames := c.Frames()
	for k, idxs := range c.ModifiedKeyFrames() {
		if len(idxs) == 0 {
			continue
		}
		last := idxs[len(idxs)-1]
		out[k] = frames[last][k]
	}
	return out
}
