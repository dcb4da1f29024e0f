package crcache

import (
	"sync"
	"time"
)

// Scheduler is the external cooperative poll loop of spec.md §5: a thin,
// goroutine-safe wrapper that periodically asks every registered CRCache
// whether its sync_* predicates now hold, rather than a busy spin. It also
// tracks which cache is "at the top of the sub-block stack" — the one
// permitted to advance EXECUTED -> COMMITTED next — so commits serialize
// even though execution itself ran in parallel.
type Scheduler struct {
	interval time.Duration
	numSBB   uint64

	mu         sync.Mutex
	caches     []*Cache
	nextCommit int

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler registers caches, one per sub-block builder, polled every
// interval. numSBB is the barrier target every macro must reach; it
// defaults to len(caches) when zero.
func NewScheduler(interval time.Duration, numSBB uint64, caches []*Cache) *Scheduler {
	if numSBB == 0 {
		numSBB = uint64(len(caches))
	}
	return &Scheduler{
		interval: interval,
		numSBB:   numSBB,
		caches:   caches,
		stop:     make(chan struct{}),
	}
}

// Start begins polling in a background goroutine.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.PollOnce()
			}
		}
	}()
}

// Stop halts the background poll loop and waits for it to exit.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

// PollOnce drives every registered cache through one round of its sync_*
// predicates. Exported so a caller (or a test) can advance the round
// deterministically instead of waiting on the ticker.
func (s *Scheduler) PollOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.caches {
		view := SchedulerView{TopOfStack: i == s.nextCommit, NumSBB: s.numSBB}
		if ok, _ := c.SyncExecution(view); ok && i == s.nextCommit {
			s.nextCommit++
		}
		if _, err := c.SyncMergeReady(s.numSBB); err != nil {
			continue
		}
		if c.State() == ReadyToMerge {
			// A merge conflict leaves the cache parked at READY_TO_MERGE;
			// the scheduler does not retry automatically (spec.md §4.8
			// leaves re-run-or-abort to the caller).
			_ = c.Merge()
		}
		_, _ = c.SyncReset(s.numSBB)
	}
}
