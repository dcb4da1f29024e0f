// Package contractstore implements the ContractDriver: the typed get/set
// layer over pkg/cache's raw byte-string CacheDriver, plus contract
// lifecycle operations (set_contract/get_contract/get_compiled/is_contract)
// and a compiled-image cache keyed by (name, source hash) so a hot contract
// is not re-parsed and re-linted on every call (spec.md §9 Open Question 1).
package contractstore

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru"

	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/cache"
	"github.com/quailmother/contracting/pkg/encoding"
	"github.com/quailmother/contracting/pkg/lang"
)

// Driver is the ContractDriver described in spec.md §4.1/§4.4: a typed
// value store plus contract metadata conventions, backed by a cache.Driver.
type Driver struct {
	cache *cache.Driver
	cfg   *params.Config

	compiled *lru.Cache // sourceHash(string) -> *lang.Image
}

// New wraps c in a Driver. cacheSize bounds the number of compiled images
// held in memory at once (SPEC_FULL.md's domain-stack wiring for
// hashicorp/golang-lru).
func New(c *cache.Driver, cfg *params.Config, cacheSize int) (*Driver, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	lc, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Driver{cache: c, cfg: cfg, compiled: lc}, nil
}

// Get decodes the canonical value stored at key, or Null if absent. This is
// the single-key form lang.StateStore requires, so a *Driver can be passed
// directly as a Runtime's Store.
func (d *Driver) Get(key string) (interface{}, error) {
	raw, ok, err := d.cache.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return encoding.Null{}, nil
	}
	return encoding.Decode(raw)
}

// Set encodes and writes value at key.
func (d *Driver) Set(key string, value interface{}) error {
	raw, err := encoding.Encode(value)
	if err != nil {
		return err
	}
	d.cache.Set(key, raw)
	return nil
}

// GetField decodes the canonical value stored at contract.field, or Null if
// absent.
func (d *Driver) GetField(contract, field string) (interface{}, error) {
	return d.Get(d.cfg.MakeKey(contract, field))
}

// SetField encodes and writes value at contract.field.
func (d *Driver) SetField(contract, field string, value interface{}) error {
	return d.Set(d.cfg.MakeKey(contract, field), value)
}

// HGetField decodes the canonical value stored at contract.field:subkey.
func (d *Driver) HGetField(contract, field, subkey string) (interface{}, error) {
	return d.Get(d.cfg.MakeSubKey(contract, field, subkey))
}

// HSetField encodes and writes value at contract.field:subkey.
func (d *Driver) HSetField(contract, field, subkey string, value interface{}) error {
	return d.Set(d.cfg.MakeSubKey(contract, field, subkey), value)
}

// Cache exposes the underlying cache.Driver so the sandbox/executor can
// install a metering Tracer and manage frame boundaries around a dispatch.
func (d *Driver) Cache() *cache.Driver { return d.cache }

// IsContract implements lang.ExistenceChecker: a contract exists once its
// CodeKey metadata field is present.
func (d *Driver) IsContract(name string) bool {
	v, err := d.GetField(name, d.cfg.CodeKey)
	if err != nil {
		return false
	}
	return !encoding.IsNull(v)
}

// GetContract returns a contract's stored source text.
func (d *Driver) GetContract(name string) (string, error) {
	v, err := d.GetField(name, d.cfg.CodeKey)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", lang.ErrContractNotFound
	}
	return s, nil
}

// SetContract lints, rewrites, and stores a contract's source and metadata.
// Unlike the original Lamden deployment (whose set_contract defaults
// overwrite=True and only special-cases the submission contract), this
// refuses a silent overwrite of an existing contract unless overwrite is
// explicitly true — the spec's corrected, safer default (SPEC_FULL.md §9).
func (d *Driver) SetContract(name, code, author, contractType string, overwrite bool) error {
	if !overwrite && d.IsContract(name) {
		return ErrContractExists
	}

	img, err := lang.Compile(code, d.cfg, name, d)
	if err != nil {
		return err
	}
	compiledBytes, err := img.Marshal()
	if err != nil {
		return err
	}

	if err := d.SetField(name, d.cfg.CodeKey, code); err != nil {
		return err
	}
	if err := d.SetField(name, d.cfg.AuthorKey, author); err != nil {
		return err
	}
	if err := d.SetField(name, d.cfg.TypeKey, contractType); err != nil {
		return err
	}
	if err := d.SetField(name, d.cfg.CompiledKey, compiledBytes); err != nil {
		return err
	}
	d.compiled.Add(sourceHash(name, code), img)
	return nil
}

// GetCompiled returns the cached *lang.Image for name, recompiling (and
// re-caching) from stored source+metadata on a cache miss.
func (d *Driver) GetCompiled(name string) (*lang.Image, error) {
	code, err := d.GetContract(name)
	if err != nil {
		return nil, err
	}
	hash := sourceHash(name, code)
	if v, ok := d.compiled.Get(hash); ok {
		return v.(*lang.Image), nil
	}

	v, err := d.GetField(name, d.cfg.CompiledKey)
	if err != nil {
		return nil, err
	}
	if raw, ok := v.([]byte); ok {
		if img, err := lang.UnmarshalImage(raw); err == nil {
			d.compiled.Add(hash, img)
			return img, nil
		}
	}

	img, err := lang.Compile(code, d.cfg, name, d)
	if err != nil {
		return nil, err
	}
	d.compiled.Add(hash, img)
	return img, nil
}

// DeleteContract is a prefix-delete over every key stored under name: its
// metadata fields plus every ORM state key a contract's Variable/Hash
// bindings wrote, matching the original's delete_contract
// (original_source/contracting/db/driver.py), which iterates prefix=name
// rather than just the four reserved fields.
func (d *Driver) DeleteContract(name string) error {
	keys, err := d.cache.Iter(name + d.cfg.IndexSeparator)
	if err != nil {
		return err
	}
	for _, k := range keys {
		d.cache.Delete(k)
	}
	return nil
}

// GetContractKeys returns every top-level key stored for name (its
// reserved metadata fields plus any declared ORM bindings), without values.
func (d *Driver) GetContractKeys(name string) ([]string, error) {
	return d.cache.Iter(name + d.cfg.IndexSeparator)
}

func sourceHash(name, code string) string {
	sum := sha256.Sum256([]byte(name + "\x00" + code))
	return hex.EncodeToString(sum[:])
}
