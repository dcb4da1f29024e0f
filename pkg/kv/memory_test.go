package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryGetSetDelete(t *testing.T) {
	m := NewMemory()

	_, ok, err := m.Get("a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.Set("a", []byte("1")))
	v, ok, err := m.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, m.Delete("a"))
	_, ok, err = m.Get("a")
	require.NoError(t, err)
	require.False(t, ok)

	// deleting an absent key is a no-op
	require.NoError(t, m.Delete("a"))
}

func TestMemoryIterPrefix(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set("contract.x", []byte("1")))
	require.NoError(t, m.Set("contract.y:1", []byte("2")))
	require.NoError(t, m.Set("other.z", []byte("3")))

	keys, err := m.Iter("contract.")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"contract.x", "contract.y:1"}, keys)
}

func TestMemoryIncrBy(t *testing.T) {
	m := NewMemory()
	v, err := m.IncrBy("n", 3)
	require.NoError(t, err)
	require.Equal(t, int64(3), v)

	v, err = m.IncrBy("n", -1)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)
}

func TestMemoryFlush(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set("a", []byte("1")))
	require.NoError(t, m.Flush())
	keys, err := m.Keys()
	require.NoError(t, err)
	require.Empty(t, keys)
}
