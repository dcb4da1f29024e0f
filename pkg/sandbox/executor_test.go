package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/cache"
	"github.com/quailmother/contracting/pkg/contractstore"
	"github.com/quailmother/contracting/pkg/encoding"
	"github.com/quailmother/contracting/pkg/kv"
	"github.com/quailmother/contracting/pkg/loader"
)

const currencySource = `
balances = Hash()

@construct
def seed():
    balances['alice'] = 1000000
    balances['bob'] = 0

@export
def transfer(amount, to):
    sender = ctx.caller
    assert balances[sender] >= amount, "insufficient balance"
    balances[sender] -= amount
    balances[to] += amount
`

func newTestExecutor(t *testing.T) (*Executor, *contractstore.Driver, *params.Config) {
	t.Helper()
	cfg := params.Default()
	c := cache.New(kv.NewMemory(), cfg.ReadCostPerByte)
	store, err := contractstore.New(c, cfg, 8)
	require.NoError(t, err)
	require.NoError(t, store.SetContract(cfg.CurrencyContract, currencySource, "alice", params.ContractTypeUser, false))

	ld := loader.New(store, cfg)
	_, err = ld.Call(cfg.CurrencyContract, cfg.ConstructFuncName, "alice", nil, nil, nil)
	require.NoError(t, err)

	return New(store, ld, cfg), store, cfg
}

func TestExecuteMetersStampsAgainstCurrencyBalance(t *testing.T) {
	ex, store, cfg := newTestExecutor(t)

	result := ex.Execute("alice", cfg.CurrencyContract, "transfer", []interface{}{encoding.DecimalFromInt64(100), "bob"}, nil, 500000, true, true)
	require.NoError(t, result.Error)
	assert.Equal(t, 0, result.StatusCode)
	assert.Greater(t, result.StampsUsed, uint64(0))

	bobBal, err := store.HGetField(cfg.CurrencyContract, "balances", "bob")
	require.NoError(t, err)
	assert.Equal(t, encoding.DecimalFromInt64(100), bobBal)

	aliceBal, err := store.HGetField(cfg.CurrencyContract, "balances", "alice")
	require.NoError(t, err)
	aliceDec := aliceBal.(encoding.Decimal)
	// 1000000 - 100 transferred - (stampsUsed/StampToTau) metering fee
	assert.True(t, aliceDec.Cmp(encoding.DecimalFromInt64(999900)) < 0)
}

func TestExecuteRejectsInsufficientStamps(t *testing.T) {
	ex, _, cfg := newTestExecutor(t)

	result := ex.Execute("alice", cfg.CurrencyContract, "transfer", []interface{}{encoding.DecimalFromInt64(100), "bob"}, nil, 1_000_000_000_000, true, true)
	assert.ErrorIs(t, result.Error, ErrInsufficientStamps)
	assert.Equal(t, 1, result.StatusCode)
}

const infiniteLoopSource = `
@export
def spin():
    x = 0
    while True:
        x = x + 1
`

// TestExecuteBoundsComputeOnlyInfiniteLoop is spec.md §8 scenario E4
// (inf_loop): a contract that never touches the cache must still be cut off
// by metering, with its stamp budget converted to tau and deducted even
// though the call itself failed.
func TestExecuteBoundsComputeOnlyInfiniteLoop(t *testing.T) {
	ex, store, cfg := newTestExecutor(t)
	require.NoError(t, store.SetContract("looper", infiniteLoopSource, "alice", params.ContractTypeUser, false))

	result := ex.Execute("alice", "looper", "spin", nil, nil, 1000, true, true)
	require.Error(t, result.Error)
	assert.Equal(t, 1, result.StatusCode)
	assert.Equal(t, uint64(1000), result.StampsUsed)

	aliceBal, err := store.HGetField(cfg.CurrencyContract, "balances", "alice")
	require.NoError(t, err)
	aliceDec := aliceBal.(encoding.Decimal)
	wantTau := ceilDiv(1000, cfg.StampToTau)
	assert.Equal(t, encoding.DecimalFromInt64(1000000).Sub(encoding.DecimalFromInt64(int64(wantTau))), aliceDec)
}

func TestCeilDivRoundsUpPartialStamp(t *testing.T) {
	assert.Equal(t, uint64(1), ceilDiv(1, 5000))
	assert.Equal(t, uint64(2), ceilDiv(5001, 5000))
	assert.Equal(t, uint64(1), ceilDiv(5000, 5000))
	assert.Equal(t, uint64(0), ceilDiv(0, 5000))
}

func TestExecuteRevertsOnAssertFailureWithoutMetering(t *testing.T) {
	ex, store, cfg := newTestExecutor(t)

	result := ex.Execute("bob", cfg.CurrencyContract, "transfer", []interface{}{encoding.DecimalFromInt64(1), "alice"}, nil, 0, false, true)
	assert.Equal(t, 1, result.StatusCode)
	require.Error(t, result.Error)

	bobBal, err := store.HGetField(cfg.CurrencyContract, "balances", "bob")
	require.NoError(t, err)
	assert.Equal(t, encoding.DecimalFromInt64(0), bobBal)
}
