package lang

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/encoding"
	"golang.org/x/crypto/sha3"
)

// builtinFunc is a Go-implemented callable installed into the module
// environment, as opposed to a userFunc (contract-defined) or boundFunc
// (cross-contract reference).
type builtinFunc struct {
	name string
	fn   func(args []interface{}, kwargs map[string]interface{}, rt *Runtime) (interface{}, error)
}

// ctxObject is the runtime value bound to the bare name "ctx" inside every
// module's environment, exposing the exact three attributes module.py reads
// off rt.ctx: caller, signer, this.
type ctxObject struct {
	rt *Runtime
}

// ormVariable is the scalar state binding produced by the Variable and
// ForeignVariable constructors (seneca/stdlib/bridge/orm.py): a single value
// stored at one compound key.
type ormVariable struct {
	store    StateStore
	key      string
	readOnly bool
}

func (v *ormVariable) get() (interface{}, error) {
	val, err := v.store.Get(v.key)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return encoding.Null{}, nil
	}
	return val, nil
}

func (v *ormVariable) set(value interface{}) error {
	if v.readOnly {
		return ErrNotCallable
	}
	return v.store.Set(v.key, value)
}

// ormHash is the subscripted state binding produced by the Hash and
// ForeignHash constructors: one value per subkey, stored under
// "<prefix><SubDelimiter><subkey>".
type ormHash struct {
	store    StateStore
	cfg      *params.Config
	prefix   string
	readOnly bool
}

func (h *ormHash) subkeyOf(subkey interface{}) string {
	return h.prefix + h.cfg.SubDelimiter + fmt.Sprint(subkey)
}

func (h *ormHash) get(subkey interface{}) (interface{}, error) {
	val, err := h.store.Get(h.subkeyOf(subkey))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return encoding.Null{}, nil
	}
	return val, nil
}

func (h *ormHash) set(subkey, value interface{}) error {
	if h.readOnly {
		return ErrNotCallable
	}
	return h.store.Set(h.subkeyOf(subkey), value)
}

// installBuiltins populates e with every name the restricted dialect's
// sanitizer allows a contract to reference without an explicit import: the
// four ORM constructors, the numeric-literal wrapper rewrite injects calls
// to, and the hashing helpers seneca/stdlib exposes under its "exports"
// bridge (seneca/stdlib/bridge/env.py).
func installBuiltins(e *env, rt *Runtime) {
	e.setLocal("Variable", &builtinFunc{name: "Variable", fn: newVariable})
	e.setLocal("Hash", &builtinFunc{name: "Hash", fn: newHash})
	e.setLocal("ForeignVariable", &builtinFunc{name: "ForeignVariable", fn: newForeignVariable})
	e.setLocal("ForeignHash", &builtinFunc{name: "ForeignHash", fn: newForeignHash})
	e.setLocal(DecimalWrapperName, &builtinFunc{name: DecimalWrapperName, fn: decimalWrapper})
	e.setLocal("sha256", &builtinFunc{name: "sha256", fn: sha256Builtin})
	e.setLocal("sha3", &builtinFunc{name: "sha3", fn: sha3Builtin})
	e.setLocal("importing", &importingObject{rt: rt})
}

func newVariable(args []interface{}, kwargs map[string]interface{}, rt *Runtime) (interface{}, error) {
	contract, _ := kwargs["contract"].(string)
	name, _ := kwargs["name"].(string)
	return &ormVariable{store: rt.Store, key: rt.Cfg.MakeKey(contract, name)}, nil
}

func newHash(args []interface{}, kwargs map[string]interface{}, rt *Runtime) (interface{}, error) {
	contract, _ := kwargs["contract"].(string)
	name, _ := kwargs["name"].(string)
	return &ormHash{store: rt.Store, cfg: rt.Cfg, prefix: rt.Cfg.MakeKey(contract, name)}, nil
}

// newForeignVariable resolves to a read-only binding against another
// contract's field: the caller-supplied foreign_contract/foreign_name
// arguments select the key, while the auto-injected contract/name keywords
// (added to every ORM constructor call by Rewrite) are discarded here — they
// identify the declaring attribute, not the storage target.
func newForeignVariable(args []interface{}, kwargs map[string]interface{}, rt *Runtime) (interface{}, error) {
	fc, fn := foreignArgs(args, kwargs)
	return &ormVariable{store: rt.Store, key: rt.Cfg.MakeKey(fc, fn), readOnly: true}, nil
}

func newForeignHash(args []interface{}, kwargs map[string]interface{}, rt *Runtime) (interface{}, error) {
	fc, fn := foreignArgs(args, kwargs)
	return &ormHash{store: rt.Store, cfg: rt.Cfg, prefix: rt.Cfg.MakeKey(fc, fn), readOnly: true}, nil
}

func foreignArgs(args []interface{}, kwargs map[string]interface{}) (string, string) {
	fc, _ := kwargs["foreign_contract"].(string)
	fn, _ := kwargs["foreign_name"].(string)
	if fc == "" && len(args) > 0 {
		fc, _ = args[0].(string)
	}
	if fn == "" && len(args) > 1 {
		fn, _ = args[1].(string)
	}
	return fc, fn
}

// decimalWrapper is DecimalWrapperName's implementation: it parses the raw
// literal text Rewrite embedded as a string argument into a canonical
// encoding.Decimal.
func decimalWrapper(args []interface{}, kwargs map[string]interface{}, rt *Runtime) (interface{}, error) {
	if len(args) == 0 {
		return nil, ErrMalformedArgs
	}
	text, ok := args[0].(string)
	if !ok {
		return nil, ErrMalformedArgs
	}
	return encoding.ParseDecimal(text, rt.Cfg.DecimalPrecision)
}

func sha256Builtin(args []interface{}, kwargs map[string]interface{}, rt *Runtime) (interface{}, error) {
	text, err := argToBytes(args)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(text)
	return hex.EncodeToString(sum[:]), nil
}

func sha3Builtin(args []interface{}, kwargs map[string]interface{}, rt *Runtime) (interface{}, error) {
	text, err := argToBytes(args)
	if err != nil {
		return nil, err
	}
	sum := sha3.Sum256(text)
	return hex.EncodeToString(sum[:]), nil
}

func argToBytes(args []interface{}) ([]byte, error) {
	if len(args) == 0 {
		return nil, ErrMalformedArgs
	}
	switch v := args[0].(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, ErrMalformedArgs
	}
}

// importingObject is the runtime value bound to the bare name "importing",
// grounded on seneca/stdlib/bridge/imports.py's exports['importing.contract']
// entry: a single method that resolves another contract by name at call
// time, rather than at the enclosing module's top-level `import` time.
type importingObject struct {
	rt *Runtime
}
