package contractstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/cache"
	"github.com/quailmother/contracting/pkg/encoding"
	"github.com/quailmother/contracting/pkg/kv"
)

const helloSource = `
@export
def ping():
    return 1
`

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	store := kv.NewMemory()
	c := cache.New(store, 0)
	d, err := New(c, params.Default(), 8)
	require.NoError(t, err)
	return d
}

func TestSetContractRejectsOverwriteByDefault(t *testing.T) {
	d := newTestDriver(t)
	require.NoError(t, d.SetContract("hello", helloSource, "alice", params.ContractTypeUser, false))
	err := d.SetContract("hello", helloSource, "bob", params.ContractTypeUser, false)
	assert.ErrorIs(t, err, ErrContractExists)
	require.NoError(t, d.SetContract("hello", helloSource, "bob", params.ContractTypeUser, true))
}

func TestSetContractRejectsLintFailure(t *testing.T) {
	d := newTestDriver(t)
	err := d.SetContract("bad", "x = 1\n", "alice", params.ContractTypeUser, false)
	require.Error(t, err)
	assert.False(t, d.IsContract("bad"))
}

func TestDeleteContractRemovesEveryORMKeyNotJustMetadata(t *testing.T) {
	d := newTestDriver(t)
	require.NoError(t, d.SetContract("hello", helloSource, "alice", params.ContractTypeUser, false))
	require.NoError(t, d.HSetField("hello", "balances", "alice", "1"))
	require.NoError(t, d.HSetField("hello", "balances", "bob", "2"))

	keysBefore, err := d.GetContractKeys("hello")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(keysBefore), 6) // 4 metadata fields + 2 hash subkeys

	require.NoError(t, d.DeleteContract("hello"))

	keysAfter, err := d.GetContractKeys("hello")
	require.NoError(t, err)
	assert.Empty(t, keysAfter)
	assert.False(t, d.IsContract("hello"))

	v, err := d.HGetField("hello", "balances", "alice")
	require.NoError(t, err)
	assert.True(t, encoding.IsNull(v))
}

func TestGetCompiledCachesAcrossCalls(t *testing.T) {
	d := newTestDriver(t)
	require.NoError(t, d.SetContract("hello", helloSource, "alice", params.ContractTypeUser, false))

	imgA, err := d.GetCompiled("hello")
	require.NoError(t, err)
	imgB, err := d.GetCompiled("hello")
	require.NoError(t, err)
	assert.Same(t, imgA, imgB)
}
