package kv

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/btree"
)

type kvItem struct {
	key   string
	value []byte
}

func lessItem(a, b kvItem) bool {
	return a.key < b.key
}

// Memory is the in-memory driver: an ordered map backed by a B-tree so
// prefix scans stay sorted without a full linear pass over unrelated keys.
// It assumes single-threaded access per spec.md §4.2, though it still
// serializes through a mutex so it is safe to share across goroutines that
// do not race on the same key.
type Memory struct {
	mu   sync.Mutex
	tree *btree.BTreeG[kvItem]
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tree: btree.NewG(32, lessItem)}
}

func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.tree.Get(kvItem{key: key})
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.tree.ReplaceOrInsert(kvItem{key: key, value: cp})
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Delete(kvItem{key: key})
	return nil
}

func (m *Memory) Exists(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tree.Get(kvItem{key: key})
	return ok, nil
}

func (m *Memory) Iter(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	m.tree.AscendGreaterOrEqual(kvItem{key: prefix}, func(item kvItem) bool {
		if !strings.HasPrefix(item.key, prefix) {
			return false
		}
		out = append(out, item.key)
		return true
	})
	return out, nil
}

func (m *Memory) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, m.tree.Len())
	m.tree.Ascend(func(item kvItem) bool {
		out = append(out, item.key)
		return true
	})
	return out, nil
}

func (m *Memory) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree = btree.NewG(32, lessItem)
	return nil
}

func (m *Memory) IncrBy(key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := int64(0)
	if item, ok := m.tree.Get(kvItem{key: key}); ok {
		v, err := strconv.ParseInt(string(item.value), 10, 64)
		if err != nil {
			return 0, err
		}
		cur = v
	}
	cur += delta
	m.tree.ReplaceOrInsert(kvItem{key: key, value: []byte(strconv.FormatInt(cur, 10))})
	return cur, nil
}
