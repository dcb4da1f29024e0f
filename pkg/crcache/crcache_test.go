package crcache

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
	"github.com/quailmother/contracting/pkg/sandbox"
)

const storeSource = `
value = Variable()

@export
def put(v):
    value.set(v)
`

func TestCRCacheDisjointKeysMergeToMaster(t *testing.T) {
	cfg := params.Default()
	masterKV := kv.NewMemory()
	macros := NewMacros(masterKV)
	session := "round-1"

	build := func(contractName string) *Cache {
		scratchKV := kv.NewMemory()
		scratch := cache.New(scratchKV, cfg.ReadCostPerByte)
		store, err := contractstore.New(scratch, cfg, 8)
		require.NoError(t, err)
		require.NoError(t, store.SetContract(contractName, storeSource, "alice", params.ContractTypeUser, false))
		ld := loader.New(store, cfg)
		ex := sandbox.New(store, ld, cfg)
		return New(session, scratch, store, scratchKV, ex, masterKV, macros)
	}

	a := build("pkgA")
	b := build("pkgB")
	caches := []*Cache{a, b}

	require.NoError(t, a.SetBag([]sandbox.Transaction{{Sender: "alice", Contract: "pkgA", Function: "put", Args: []interface{}{encoding.DecimalFromInt64(1)}}}))
	require.NoError(t, b.SetBag([]sandbox.Transaction{{Sender: "bob", Contract: "pkgB", Function: "put", Args: []interface{}{encoding.DecimalFromInt64(2)}}}))

	_, err := a.Execute()
	require.NoError(t, err)
	_, err = b.Execute()
	require.NoError(t, err)

	sched := NewScheduler(0, uint64(len(caches)), caches)
	for i := 0; i < 4; i++ {
		sched.PollOnce()
	}

	for _, c := range caches {
		assert.Equal(t, CLEAN, c.State())
	}

	aVal, ok, err := masterKV.Get(cfg.MakeKey("pkgA", "value"))
	require.NoError(t, err)
	require.True(t, ok)
	decodedA, err := encoding.Decode(aVal)
	require.NoError(t, err)
	assert.Equal(t, encoding.DecimalFromInt64(1), decodedA)

	bVal, ok, err := masterKV.Get(cfg.MakeKey("pkgB", "value"))
	require.NoError(t, err)
	require.True(t, ok)
	decodedB, err := encoding.Decode(bVal)
	require.NoError(t, err)
	assert.Equal(t, encoding.DecimalFromInt64(2), decodedB)

	execCount, err := macros.Count(session, MacroExec)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), execCount)
	crCount, err := macros.Count(session, MacroCR)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), crCount)
	resetCount, err := macros.Count(session, MacroReset)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), resetCount)
}
