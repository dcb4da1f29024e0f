package cache

import (
	"math/big"
	"testing"

	"github.com/quailmother/contracting/pkg/encoding"
	"github.com/quailmother/contracting/pkg/kv"
	"github.com/stretchr/testify/require"
)

func enc(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := encoding.Encode(v)
	require.NoError(t, err)
	return b
}

func TestCommitWritesLatestFrameWin(t *testing.T) {
	store := kv.NewMemory()
	d := New(store, 0)

	d.Set("x", enc(t, big.NewInt(10)))
	d.NewTx()
	d.Set("x", enc(t, big.NewInt(20)))

	v, ok, err := d.Get("x")
	require.NoError(t, err)
	require.True(t, ok)
	decoded, _ := encoding.Decode(v)
	require.Equal(t, big.NewInt(20), decoded)

	require.NoError(t, d.Commit())
	raw, ok, err := store.Get("x")
	require.NoError(t, err)
	require.True(t, ok)
	decoded, _ = encoding.Decode(raw)
	require.Equal(t, big.NewInt(20), decoded)

	// cache is back to one empty frame
	require.Equal(t, 1, d.Depth())
}

func TestDeleteBecomesStoreDeleteAtCommit(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set("x", enc(t, big.NewInt(1))))
	d := New(store, 0)

	d.Delete("x")
	require.NoError(t, d.Commit())

	_, ok, err := store.Get("x")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevertDiscardsFramesAboveIdx(t *testing.T) {
	store := kv.NewMemory()
	d := New(store, 0)

	d.Set("x", enc(t, big.NewInt(1)))
	d.NewTx()
	d.Set("x", enc(t, big.NewInt(2)))
	d.NewTx()
	d.Set("x", enc(t, big.NewInt(3)))

	d.Revert(1)
	v, ok, err := d.Get("x")
	require.NoError(t, err)
	require.True(t, ok)
	decoded, _ := encoding.Decode(v)
	require.Equal(t, big.NewInt(2), decoded)
}

func TestRevertZeroIsFullReset(t *testing.T) {
	store := kv.NewMemory()
	d := New(store, 0)
	d.Set("x", enc(t, big.NewInt(1)))
	d.NewTx()
	d.Set("y", enc(t, big.NewInt(2)))

	d.Revert(0)
	require.Equal(t, 1, d.Depth())
	_, ok, err := d.Get("x")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReadThroughRecordsOriginalValue(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set("x", enc(t, big.NewInt(5))))
	d := New(store, 0)

	_, _, err := d.Get("x")
	require.NoError(t, err)

	val, existed, recorded := d.OriginalValue("x")
	require.True(t, recorded)
	require.True(t, existed)
	decoded, _ := encoding.Decode(val)
	require.Equal(t, big.NewInt(5), decoded)
}

func TestIterUnionsStoreAndCache(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set("c.a", enc(t, big.NewInt(1))))
	d := New(store, 0)
	d.Set("c.b", enc(t, big.NewInt(2)))

	keys, err := d.Iter("c.")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"c.a", "c.b"}, keys)
}
