package crcache

import (
	"strconv"

	"github.com/quailmother/contracting/pkg/kv"
)

// Barrier macro names, per spec.md §4.8/§6's reserved counter keys.
const (
	MacroExec  = "__exec__"
	MacroCR    = "__cr__"
	MacroReset = "__reset__"
)

// Macros counts, per CR session, how many sub-block builders have passed
// each barrier. It is backed directly by the shared master kv.Store's
// IncrBy, so concurrent CRCache instances racing to bump the same macro
// still land on distinct, correctly-ordered counts.
type Macros struct {
	store kv.Store
}

// NewMacros wraps store (the shared master store) in a Macros counter.
func NewMacros(store kv.Store) *Macros {
	return &Macros{store: store}
}

func (m *Macros) key(session, name string) string {
	return name + ":" + session
}

// Bump increments the named macro for session by one and returns the new
// total.
func (m *Macros) Bump(session, name string) (uint64, error) {
	n, err := m.store.IncrBy(m.key(session, name), 1)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// Count reads the current total for session's macro, without touching it.
func (m *Macros) Count(session, name string) (uint64, error) {
	raw, ok, err := m.store.Get(m.key(session, name))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}
