// Package loader ties pkg/contractstore and pkg/lang together: it is the
// module loader described in spec.md §4.6, turning a contract name into a
// compiled image, a fresh Runtime, and a call stack entry.
package loader

import (
	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/contractstore"
	"github.com/quailmother/contracting/pkg/lang"
)

// Loader resolves contract names to compiled images and builds the Runtime
// every top-level Execute/Import dispatches through.
type Loader struct {
	Store *contractstore.Driver
	Cfg   *params.Config
}

// New wraps store/cfg in a Loader.
func New(store *contractstore.Driver, cfg *params.Config) *Loader {
	return &Loader{Store: store, Cfg: cfg}
}

// Importer adapts Store.GetCompiled to lang.Importer. Compiled images are
// cached by source hash, so a changed source is compiled afresh; for
// unchanged source the cached image, or the one stored under the compiled
// metadata field, is reused without recompiling.
func (l *Loader) Importer() lang.Importer {
	return l.Store.GetCompiled
}

// NewRuntime builds a fresh per-dispatch Runtime, wired to this loader's
// store and importer.
func (l *Loader) NewRuntime() *lang.Runtime {
	return &lang.Runtime{
		Store:    l.Store,
		Cfg:      l.Cfg,
		Importer: l.Importer(),
	}
}

// Call resolves contract, builds a fresh Runtime with signer seeded as the
// bottom of the call stack, and invokes function with args/kwargs. tracer,
// if non-nil, is installed on the Runtime so execStmt/evalExpr charge it
// per statement/expression evaluated, in addition to whatever cache I/O the
// call performs — this is what lets metering bound a compute-only contract
// (spec.md §4.7 step 3), not just one that reads or writes state.
func (l *Loader) Call(contract, function, signer string, args []interface{}, kwargs map[string]interface{}, tracer lang.Tracer) (interface{}, error) {
	img, err := l.Store.GetCompiled(contract)
	if err != nil {
		return nil, err
	}
	rt := l.NewRuntime()
	rt.CallStack = []string{signer}
	rt.Tracer = tracer
	return lang.CallByName(img, function, args, kwargs, rt)
}
