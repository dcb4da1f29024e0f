// Package sandbox implements the Executor described in spec.md §4.7: the
// component that wraps one contract dispatch in a cache transaction frame
// and, when requested, in the stamp-metering protocol.
package sandbox

import (
	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/contractstore"
	"github.com/quailmother/contracting/pkg/encoding"
	"github.com/quailmother/contracting/pkg/lang"
	"github.com/quailmother/contracting/pkg/loader"
)

// Result is the outcome of one Execute dispatch.
type Result struct {
	StatusCode int // 0 success, 1 failure
	Output     interface{}
	StampsUsed uint64
	Error      error
}

// Executor is the inline sandbox variant described in spec.md §4.7: it runs
// a dispatch in the calling goroutine, relying on the cache.Driver's frame
// discipline for isolation. pkg/sandbox's subprocess variant reuses the
// same metering protocol around an out-of-process Loader.Call.
type Executor struct {
	Store  *contractstore.Driver
	Loader *loader.Loader
	Cfg    *params.Config
}

// New wires an Executor to a store/loader/cfg triple.
func New(store *contractstore.Driver, ld *loader.Loader, cfg *params.Config) *Executor {
	return &Executor{Store: store, Loader: ld, Cfg: cfg}
}

// Execute runs one dispatch of contract.function as sender, following the
// six-step metering protocol of spec.md §4.7 when metering is true. Step
// 6 ("always open a fresh transaction frame for the next call") is the
// c.NewTx() below, pushed at the START of a dispatch rather than at the
// end of the previous one — equivalent, and it lets a failed dispatch
// Revert its own frame without touching whatever an uncommitted prior
// dispatch left behind.
func (ex *Executor) Execute(sender, contract, function string, args []interface{}, kwargs map[string]interface{}, stamps uint64, metering, autoCommit bool) *Result {
	c := ex.Store.Cache()
	balancesKey := ex.Cfg.MakeSubKey(ex.Cfg.CurrencyContract, ex.Cfg.BalancesHash, sender)

	var balance encoding.Decimal
	var meter *Meter
	if metering {
		bal, err := ex.balanceOf(balancesKey)
		if err != nil {
			return &Result{StatusCode: 1, Error: err}
		}
		balance = bal

		budget := balance.Mul(encoding.DecimalFromInt64(int64(ex.Cfg.StampToTau)))
		if budget.Cmp(encoding.DecimalFromInt64(int64(stamps))) < 0 {
			return &Result{StatusCode: 1, Error: ErrInsufficientStamps}
		}

		meter = NewMeter(stamps)
		c.SetTracer(meter)
	}

	// Revert(0) is a full cache reset, so the dispatch frame always sits at
	// index 2 or above: a failed dispatch then reverts to a frame that still
	// holds whatever was staged before it.
	if c.Depth() == 1 {
		c.NewTx()
	}
	startDepth := c.Depth()
	c.NewTx()

	// meter is also installed on the Runtime (not just the CacheDriver) so
	// execStmt/evalExpr charge it per statement/expression evaluated — a
	// compute-bound dispatch that never reads or writes the cache must
	// still run down its stamp budget (spec.md §4.7 step 3, §5).
	var tracer lang.Tracer
	if metering {
		tracer = meter
	}
	output, callErr := ex.Loader.Call(contract, function, sender, args, kwargs, tracer)

	result := &Result{Output: output, Error: callErr}
	if callErr != nil {
		result.StatusCode = 1
		c.Revert(startDepth - 1)
	} else if autoCommit {
		if err := c.Commit(); err != nil {
			result.StatusCode = 1
			result.Error = err
		}
	}

	if metering {
		c.SetTracer(nil)
		result.StampsUsed = meter.Used()

		// Re-read the balance: the call itself may have written through
		// this same key (stamps are denominated in the currency contract's
		// own balance), and step 5 must deduct against that post-dispatch
		// value, not the pre-dispatch snapshot from step 2.
		current, err := ex.balanceOf(balancesKey)
		if err != nil && result.Error == nil {
			result.Error = err
		}
		// Ceiling division (spec.md §8 property 4): a partial stamp's
		// worth of tau spent still costs the sender a whole tau, the same
		// way the original never lets a fraction of a stamp go uncharged.
		tauSpent := ceilDiv(meter.Used(), ex.Cfg.StampToTau)
		newBalance := current.Sub(encoding.DecimalFromInt64(int64(tauSpent)))
		if newBalance.Sign() < 0 {
			newBalance = encoding.DecimalFromInt64(0)
		}
		if err := ex.Store.Set(balancesKey, newBalance); err != nil && result.Error == nil {
			result.Error = err
		}
		c.Commit()
	}

	return result
}

// ExecuteBag iterates txs, calling Execute per transaction in order, per
// spec.md §4.7's execute_bag.
func (ex *Executor) ExecuteBag(txs []Transaction) []*Result {
	results := make([]*Result, 0, len(txs))
	for _, tx := range txs {
		results = append(results, ex.Execute(tx.Sender, tx.Contract, tx.Function, tx.Args, tx.Kwargs, tx.Stamps, tx.Metering, tx.AutoCommit))
	}
	return results
}

// Transaction is one entry of a bag passed to ExecuteBag.
type Transaction struct {
	Sender     string
	Contract   string
	Function   string
	Args       []interface{}
	Kwargs     map[string]interface{}
	Stamps     uint64
	Metering   bool
	AutoCommit bool
}

// ceilDiv is ceil(a/b) for non-negative a and positive b, without floating
// point.
func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func (ex *Executor) balanceOf(key string) (encoding.Decimal, error) {
	v, err := ex.Store.Get(key)
	if err != nil {
		return encoding.Decimal{}, err
	}
	if encoding.IsNull(v) {
		return encoding.DecimalFromInt64(0), nil
	}
	d, ok := v.(encoding.Decimal)
	if !ok {
		return encoding.DecimalFromInt64(0), nil
	}
	return d, nil
}
