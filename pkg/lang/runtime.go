package lang

import "github.com/quailmother/contracting/params"

// StateStore is the narrow storage surface the interpreter's ORM objects
// write through. A *contractstore.Driver satisfies it as is and pkg/loader
// passes one in directly, so pkg/lang never imports pkg/contractstore (which itself
// imports pkg/lang to run Compile) — keeping the dependency graph acyclic.
type StateStore interface {
	Get(key string) (interface{}, error)
	Set(key string, value interface{}) error
}

// Importer fetches and compiles the named contract on demand, as invoked
// by a module-level `import` statement or the `importing.contract` bridge
// helper (spec.md §4.6).
type Importer func(name string) (*Image, error)

// Tracer is charged for every unit of work the interpreter performs, not
// just cache I/O: execStmt charges it once per statement executed and
// evalExpr once per expression node evaluated, so a compute-bound loop that
// never touches the cache still runs down its budget (spec §4.7 step 3, §5
// "metering is the sole cancellation mechanism"). Its shape matches
// pkg/cache.Tracer so the same *sandbox.Meter installed on the CacheDriver
// can be installed here too, without pkg/lang importing pkg/cache.
type Tracer interface {
	Charge(n uint64) error
}

// Runtime is the per-execute() context threaded through every nested call:
// the state store, configuration, call stack, and importer. Spec.md §9
// explicitly calls for this to be an explicit parameter rather than a
// process-wide singleton.
type Runtime struct {
	Store     StateStore
	Cfg       *params.Config
	Importer  Importer
	CallStack []string // ctx[0] is the signer; ctx[len-1] is the current top

	Tracer     Tracer // nil means "not metered"
	memoryUsed int    // cumulative size of values assigned this call, checked against Cfg.MemoryLimit
}

// Charge reports n units of interpreter work to the installed Tracer. A nil
// Tracer (metering disabled) always succeeds.
func (rt *Runtime) Charge(n uint64) error {
	if rt.Tracer == nil {
		return nil
	}
	return rt.Tracer.Charge(n)
}

// Allocate accounts n bytes against Cfg.MemoryLimit, the per-call resource
// cap spec.md §6 reserves for the size of live assigned state. It is
// independent of stamp metering: a contract can afford the stamps for a
// huge value and still be rejected for exceeding memory.
func (rt *Runtime) Allocate(n int) error {
	rt.memoryUsed += n
	if rt.Cfg.MemoryLimit > 0 && rt.memoryUsed > rt.Cfg.MemoryLimit {
		return ErrMemoryLimit
	}
	return nil
}

// Push appends name to the call stack, enforcing RecursionLimit.
func (rt *Runtime) Push(name string) error {
	if len(rt.CallStack) >= rt.Cfg.RecursionLimit {
		return ErrRecursionLimit
	}
	rt.CallStack = append(rt.CallStack, name)
	return nil
}

// Pop removes the top of the call stack.
func (rt *Runtime) Pop() {
	if len(rt.CallStack) > 0 {
		rt.CallStack = rt.CallStack[:len(rt.CallStack)-1]
	}
}

// Signer is ctx[0], the transaction's original sender.
func (rt *Runtime) Signer() string {
	if len(rt.CallStack) == 0 {
		return ""
	}
	return rt.CallStack[0]
}

// Caller is the second-to-top of the stack: whoever is importing/invoking
// the module currently being loaded.
func (rt *Runtime) Caller() string {
	if len(rt.CallStack) < 2 {
		return rt.Signer()
	}
	return rt.CallStack[len(rt.CallStack)-2]
}

// This is the top of the stack: the module currently executing.
func (rt *Runtime) This() string {
	if len(rt.CallStack) == 0 {
		return ""
	}
	return rt.CallStack[len(rt.CallStack)-1]
}

// env is a lexical scope: module globals, or one function-call frame
// chained to its defining module's globals (closures do not capture
// enclosing function frames — only the module scope — matching the
// dialect's function-def-at-module-level-only grammar).
type env struct {
	vars   map[string]interface{}
	parent *env
}

func newEnv(parent *env) *env {
	return &env{vars: map[string]interface{}{}, parent: parent}
}

func (e *env) get(name string) (interface{}, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *env) setLocal(name string, v interface{}) {
	e.vars[name] = v
}

// assign implements Python-style assignment semantics for this dialect:
// write to the nearest enclosing scope that already defines the name,
// else define it in the local scope.
func (e *env) assign(name string, v interface{}) {
	for s := e; s != nil; s = s.parent {
		if _, ok := s.vars[name]; ok {
			s.vars[name] = v
			return
		}
	}
	e.vars[name] = v
}

// userFunc is a contract-defined function: its AST plus the module-level
// environment it closes over.
type userFunc struct {
	def     *Node
	closure *env
}

// boundFunc is a callable bound to a specific (possibly imported) module,
// produced by attribute access on a moduleRef (e.g. `currency.transfer`).
type boundFunc struct {
	module *moduleRef
	name   string
}

// moduleRef is the runtime value bound to an `import`ed name; attribute
// access on it resolves to a boundFunc.
type moduleRef struct {
	image *Image
	env   *env
}
