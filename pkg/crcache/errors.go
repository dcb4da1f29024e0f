package crcache

import (
	"fmt"
	"strings"
)

// ErrMergeConflict is returned by Merge when one or more keys in the
// cache's effective set were changed in master since this CRCache first
// read them. Merge policy is fail-fast (spec.md §9 Open Question, resolved
// in DESIGN.md): no partial write happens, and every disagreeing key is
// reported so the scheduler can decide whether to re-run or abort.
type ErrMergeConflict struct {
	Keys []string
}

func (e *ErrMergeConflict) Error() string {
	return fmt.Sprintf("crcache: merge conflict on %d key(s): %s", len(e.Keys), strings.Join(e.Keys, ", "))
}

// ErrWrongState is returned when a transition method is called from a
// state that does not permit it.
type ErrWrongState struct {
	Want State
	Have State
	Op   string
}

func (e *ErrWrongState) Error() string {
	return fmt.Sprintf("crcache: %s requires state %s, have %s", e.Op, e.Want, e.Have)
}
