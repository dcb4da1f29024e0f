// Package cache implements the CacheDriver: an in-memory, frame-stacked
// write-through cache over a raw kv.Store. It is the layer ContractDriver
// builds its typed get/set on top of, and the layer CRCache checkpoints and
// replays across barriers.
package cache

import (
	"sort"
	"strings"

	"github.com/quailmother/contracting/pkg/encoding"
	"github.com/quailmother/contracting/pkg/kv"
)

// Tracer is charged for every byte read through from the underlying store
// or written back to it at commit time. Sandbox implementations supply one
// with a stamp budget; nil means "not metered."
type Tracer interface {
	// Charge adds n to the tracer's accumulator. It returns an error
	// (typically a budget-exceeded error) once the accumulated total
	// exceeds the tracer's configured limit; the cache does not
	// interpret the error, only propagates it.
	Charge(n uint64) error
}

// Driver is the CacheDriver described in spec.md §4.3.
type Driver struct {
	store kv.Store

	// frames is contract_modifications: an ordered stack of per-frame
	// write maps. frames[0] always exists.
	frames []map[string][]byte

	// modifiedKeys maps a key to the ordered list of frame indices that
	// wrote it; the last entry names the frame holding the winning
	// value.
	modifiedKeys map[string][]int

	// originalValues records the value observed on first read-through
	// from the underlying store, keyed by k, for audit/merge checks.
	// A key absent from the store on first read is recorded as
	// (nil, false).
	originalValues map[string]originalEntry

	readCostPerByte uint64
	tracer          Tracer
}

type originalEntry struct {
	value  []byte
	exists bool
}

// New wraps store in a fresh CacheDriver with one empty initial frame.
func New(store kv.Store, readCostPerByte uint64) *Driver {
	return &Driver{
		store:           store,
		frames:          []map[string][]byte{{}},
		modifiedKeys:    map[string][]int{},
		originalValues:  map[string]originalEntry{},
		readCostPerByte: readCostPerByte,
	}
}

// SetTracer installs (or clears, with nil) the metering tracer for
// subsequent reads/writes.
func (d *Driver) SetTracer(t Tracer) { d.tracer = t }

func (d *Driver) charge(key string, value []byte) error {
	if d.tracer == nil {
		return nil
	}
	n := uint64(len(key)+len(value)) * d.readCostPerByte
	return d.tracer.Charge(n)
}

// Get returns the value for k following "latest write wins": the highest
// frame that wrote k, else a read-through to the underlying store (which
// records originalValues[k] on first read).
func (d *Driver) Get(k string) ([]byte, bool, error) {
	if idxs, ok := d.modifiedKeys[k]; ok && len(idxs) > 0 {
		last := idxs[len(idxs)-1]
		v, ok := d.frames[last][k]
		return v, ok, nil
	}
	return d.readThrough(k)
}

func (d *Driver) readThrough(k string) ([]byte, bool, error) {
	if orig, ok := d.originalValues[k]; ok {
		return orig.value, orig.exists, nil
	}
	v, ok, err := d.store.Get(k)
	if err != nil {
		return nil, false, err
	}
	d.originalValues[k] = originalEntry{value: v, exists: ok}
	if err := d.charge(k, v); err != nil {
		return nil, false, err
	}
	return v, ok, nil
}

// Set writes value into the current (topmost) frame for key k.
func (d *Driver) Set(k string, value []byte) {
	top := len(d.frames) - 1
	d.frames[top][k] = value
	d.recordWrite(k, top)
}

// Delete writes the encoded tombstone into the current frame, so a
// subsequent Get within the cache observes the tombstone, and commit later
// turns it into an actual store delete.
func (d *Driver) Delete(k string) {
	b, _ := encoding.Encode(encoding.Null{})
	d.Set(k, b)
}

func (d *Driver) recordWrite(k string, frameIdx int) {
	idxs := d.modifiedKeys[k]
	if len(idxs) == 0 || idxs[len(idxs)-1] != frameIdx {
		d.modifiedKeys[k] = append(idxs, frameIdx)
	}
}

// NewTx pushes a fresh empty frame.
func (d *Driver) NewTx() {
	d.frames = append(d.frames, map[string][]byte{})
}

// Depth returns the current number of frames (always >= 1).
func (d *Driver) Depth() int { return len(d.frames) }

// Revert truncates every frame with index > idx and prunes modifiedKeys
// entries past idx. Revert(0) is a full reset: every frame, the
// modifiedKeys index and originalValues are discarded, leaving a single
// empty frame.
func (d *Driver) Revert(idx int) {
	if idx < 0 {
		idx = 0
	}
	if idx == 0 {
		d.frames = []map[string][]byte{{}}
		d.modifiedKeys = map[string][]int{}
		d.originalValues = map[string]originalEntry{}
		return
	}
	if idx >= len(d.frames) {
		return
	}
	d.frames = d.frames[:idx+1]
	for k, idxs := range d.modifiedKeys {
		i := sort.SearchInts(idxs, idx+1)
		if i == 0 {
			delete(d.modifiedKeys, k)
			continue
		}
		d.modifiedKeys[k] = idxs[:i]
	}
}

// Commit writes the winning value of every modified key through to the
// underlying store (an encoded Null becomes a delete), then resets the
// cache to a single empty frame with no history.
func (d *Driver) Commit() error {
	keys := make([]string, 0, len(d.modifiedKeys))
	for k := range d.modifiedKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		idxs := d.modifiedKeys[k]
		last := idxs[len(idxs)-1]
		v := d.frames[last][k]
		decoded, err := encoding.Decode(v)
		if err == nil && encoding.IsNull(decoded) {
			if err := d.store.Delete(k); err != nil {
				return err
			}
			continue
		}
		if err := d.charge(k, v); err != nil {
			return err
		}
		if err := d.store.Set(k, v); err != nil {
			return err
		}
	}

	d.frames = []map[string][]byte{{}}
	d.modifiedKeys = map[string][]int{}
	d.originalValues = map[string]originalEntry{}
	return nil
}

// GetDirect bypasses the cache and reads straight from the underlying
// store.
func (d *Driver) GetDirect(k string) ([]byte, bool, error) {
	return d.store.Get(k)
}

// SetDirect bypasses the cache and writes straight to the underlying
// store.
func (d *Driver) SetDirect(k string, v []byte) error {
	return d.store.Set(k, v)
}

// Iter returns the union of underlying-store keys and cache-only keys
// matching prefix, without duplicates, in ascending order.
func (d *Driver) Iter(prefix string) ([]string, error) {
	seen := map[string]struct{}{}
	storeKeys, err := d.store.Iter(prefix)
	if err != nil {
		return nil, err
	}
	for _, k := range storeKeys {
		seen[k] = struct{}{}
	}
	for k, idxs := range d.modifiedKeys {
		if len(idxs) == 0 {
			continue
		}
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		last := idxs[len(idxs)-1]
		v := d.frames[last][k]
		decoded, derr := encoding.Decode(v)
		if derr == nil && encoding.IsNull(decoded) {
			delete(seen, k)
			continue
		}
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// ModifiedKeys exposes the set of keys written since the last commit, used
// by CRCache to compute a cache's effective write set at a barrier.
func (d *Driver) ModifiedKeys() []string {
	out := make([]string, 0, len(d.modifiedKeys))
	for k, idxs := range d.modifiedKeys {
		if len(idxs) > 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// OriginalValue returns the value observed for k on its first read-through
// since the last commit, for merge-conflict detection.
func (d *Driver) OriginalValue(k string) (value []byte, existed, recorded bool) {
	o, ok := d.originalValues[k]
	return o.value, o.exists, ok
}

// OriginalEntry is the exported shape of an original-value record, used at
// the ResetCache/Snapshot boundary crossed by the isolated-subprocess
// sandbox.
type OriginalEntry struct {
	Value  []byte
	Exists bool
}

// ResetCache replaces the cache's frame history wholesale, as used by the
// isolated-subprocess sandbox to replay a worker's snapshot onto the
// parent's driver (spec.md §4.7).
func (d *Driver) ResetCache(frames []map[string][]byte, modifiedKeys map[string][]int, originalValues map[string]OriginalEntry) {
	if frames == nil {
		frames = []map[string][]byte{{}}
	}
	d.frames = frames
	if modifiedKeys == nil {
		modifiedKeys = map[string][]int{}
	}
	d.modifiedKeys = modifiedKeys
	orig := map[string]originalEntry{}
	for k, v := range originalValues {
		orig[k] = originalEntry{value: v.Value, exists: v.Exists}
	}
	d.originalValues = orig
}

// Frames exposes the raw frame stack, used by CRCache/the subprocess
// sandbox to build a snapshot.
func (d *Driver) Frames() []map[string][]byte { return d.frames }

// ModifiedKeyFrames exposes the raw modifiedKeys index for snapshotting.
func (d *Driver) ModifiedKeyFrames() map[string][]int { return d.modifiedKeys }

// OriginalValues exposes the raw originalValues map for snapshotting.
func (d *Driver) OriginalValues() map[string]OriginalEntry {
	out := make(map[string]OriginalEntry, len(d.originalValues))
	for k, v := range d.originalValues {
		out[k] = OriginalEntry{Value: v.value, Exists: v.exists}
	}
	return out
}

// Store returns the underlying kv.Store this cache stages writes against.
func (d *Driver) Store() kv.Store { return d.store }
