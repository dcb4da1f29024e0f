package sandbox

import (
	"encoding/gob"
	"errors"
	"math/big"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/quailmother/contracting/pkg/cache"
	"github.com/quailmother/contracting/pkg/encoding"
)

// defaultSubprocessTimeout bounds how long ExecuteBag waits on a worker
// before killing it, used when Inner.Cfg.SubprocessTimeout is zero. Stamp
// metering (pkg/lang's per-statement Tracer charges) is what actually stops
// a runaway contract; this is a defense-in-depth backstop for the case a
// caller disabled metering for the bag, or the worker wedges for some other
// reason — without it, a blocked gob.Decode on stdout hangs ExecuteBag
// forever with nothing to auto-invoke Kill.
const defaultSubprocessTimeout = 30 * time.Second

// ErrSubprocessTimeout is returned when a worker does not respond within
// the timeout and is killed.
var ErrSubprocessTimeout = errors.New("sandbox: subprocess worker timed out")

func init() {
	gob.Register(encoding.Null{})
	gob.Register(encoding.Decimal{})
	gob.Register(big.NewInt(0))
	gob.Register([]byte(nil))
	gob.Register(encoding.List{})
	gob.Register(encoding.Map{})
}

// WorkerFlag is the argv this binary recognizes as "run as a sandbox
// worker": read a WorkRequest from stdin, execute it, write a WorkResponse
// to stdout, exit. cmd/contracting dispatches to RunWorker on seeing it.
const WorkerFlag = "--sandbox-worker"

// Snapshot is the gob-portable form of a cache.Driver's in-flight state,
// the "{driver-snapshot, transactions}" spec.md §4.7 describes crossing
// the parent/worker boundary.
type Snapshot struct {
	Frames         []map[string][]byte
	ModifiedKeys   map[string][]int
	OriginalValues map[string]cache.OriginalEntry
}

// SnapshotOf captures c's current frame stack.
func SnapshotOf(c *cache.Driver) Snapshot {
	return Snapshot{
		Frames:         c.Frames(),
		ModifiedKeys:   c.ModifiedKeyFrames(),
		OriginalValues: c.OriginalValues(),
	}
}

// Apply replays s onto c via cache.Driver.ResetCache.
func (s Snapshot) Apply(c *cache.Driver) {
	c.ResetCache(s.Frames, s.ModifiedKeys, s.OriginalValues)
}

// WorkRequest is what the parent sends a freshly spawned worker.
type WorkRequest struct {
	Snapshot Snapshot
	Txs      []Transaction
}

// wireResult is Result with the error interface flattened to a string,
// since gob cannot carry arbitrary error values across the pipe.
type wireResult struct {
	StatusCode int
	Output     interface{}
	StampsUsed uint64
	Error      string
}

// WorkResponse is what a worker sends back before exiting.
type WorkResponse struct {
	Snapshot Snapshot
	Results  []wireResult
}

// SubprocessExecutor is the isolated-subprocess sandbox variant of
// spec.md §4.7: it forks a worker per bag, replays the worker's resulting
// snapshot onto the parent's cache, and exists to contain misbehavior
// (crashes, runaway loops) without corrupting the parent's state.
type SubprocessExecutor struct {
	Inner   *Executor
	Command string // argv0 of this binary, re-exec'd with WorkerFlag

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewSubprocess wraps inner for out-of-process dispatch via command.
func NewSubprocess(inner *Executor, command string) *SubprocessExecutor {
	return &SubprocessExecutor{Inner: inner, Command: command}
}

// ExecuteBag forks a worker, hands it the parent's current cache snapshot
// plus txs, waits for the worker's response, and replays the resulting
// snapshot onto the parent's live cache.Driver.
func (s *SubprocessExecutor) ExecuteBag(txs []Transaction) ([]*Result, error) {
	cmd := exec.Command(s.Command, WorkerFlag)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cmd = nil
		s.mu.Unlock()
	}()

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	req := WorkRequest{Snapshot: SnapshotOf(s.Inner.Store.Cache()), Txs: txs}
	encErr := gob.NewEncoder(stdin).Encode(req)
	stdin.Close()
	if encErr != nil {
		_ = cmd.Process.Kill()
		return nil, encErr
	}

	type decoded struct {
		resp WorkResponse
		err  error
	}
	done := make(chan decoded, 1)
	go func() {
		var resp WorkResponse
		err := gob.NewDecoder(stdout).Decode(&resp)
		done <- decoded{resp, err}
	}()

	timeout := s.Inner.Cfg.SubprocessTimeout
	if timeout <= 0 {
		timeout = defaultSubprocessTimeout
	}

	var resp WorkResponse
	var decErr error
	select {
	case d := <-done:
		resp, decErr = d.resp, d.err
	case <-time.After(timeout):
		_ = s.Kill()
		<-done // Kill closes the pipe, unblocking the decode goroutine
		decErr = ErrSubprocessTimeout
	}

	waitErr := cmd.Wait()
	if decErr != nil {
		return nil, decErr
	}
	if waitErr != nil {
		return nil, waitErr
	}

	resp.Snapshot.Apply(s.Inner.Store.Cache())

	results := make([]*Result, len(resp.Results))
	for i, wr := range resp.Results {
		var rerr error
		if wr.Error != "" {
			rerr = errors.New(wr.Error)
		}
		results[i] = &Result{StatusCode: wr.StatusCode, Output: wr.Output, StampsUsed: wr.StampsUsed, Error: rerr}
	}
	return results, nil
}

// Kill forcibly terminates the in-flight worker, if any. Safe to call
// concurrently with ExecuteBag — the sole non-metering cancellation path
// spec.md §5 grants the subprocess variant.
func (s *SubprocessExecutor) Kill() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	return s.cmd.Process.Kill()
}

// RunWorker is the worker-side half: read a WorkRequest from stdin,
// replay its snapshot onto ex's cache, execute the bag, and write the
// resulting WorkResponse to stdout. cmd/contracting calls this when
// started with WorkerFlag.
func RunWorker(ex *Executor) error {
	var req WorkRequest
	if err := gob.NewDecoder(os.Stdin).Decode(&req); err != nil {
		return err
	}

	req.Snapshot.Apply(ex.Store.Cache())

	results := ex.ExecuteBag(req.Txs)
	wire := make([]wireResult, len(results))
	for i, r := range results {
		errStr := ""
		if r.Error != nil {
			errStr = r.Error.Error()
		}
		wire[i] = wireResult{StatusCode: r.StatusCode, Output: r.Output, StampsUsed: r.StampsUsed, Error: errStr}
	}

	resp := WorkResponse{Snapshot: SnapshotOf(ex.Store.Cache()), Results: wire}
	return gob.NewEncoder(os.Stdout).Encode(resp)
}
