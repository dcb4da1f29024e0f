// Package encoding implements the canonical value algebra shared by every
// stored key in the execution core: null, bool, integer, fixed-precision
// decimal, string, bytes, list, and map. Encode/Decode are exact inverses:
// decode(encode(v)) == v, and encode(decode(b)) == b for any b this package
// produced (spec property 2).
package encoding

import (
	"errors"
	"math/big"
)

// ErrMalformedValue is returned by Decode when the input could not have been
// produced by Encode.
var ErrMalformedValue = errors.New("encoding: malformed value")

// ErrDivideByZero is panicked by Decimal.Div on a zero divisor; the
// sandbox recovers it into a trapped contract failure, mirroring a Python
// ZeroDivisionError surfacing as a reverted call.
var ErrDivideByZero = errors.New("encoding: division by zero")

// Null is the distinguishable tombstone sentinel. It is its own Go type so
// it can never be confused with a genuine string equal to "null" — the
// fragility spec.md §9 calls out against the original's literal-string
// sentinel.
type Null struct{}

// List is the homogeneous-or-not sequence container.
type List []interface{}

// Map is the string-keyed container. Keys are written out in sorted order
// so two maps with identical contents always encode to identical bytes.
type Map map[string]interface{}

// IsNull reports whether v is the tombstone value, as produced by decoding
// an encoded Null or by the zero value of a freshly-declared state field.
func IsNull(v interface{}) bool {
	_, ok := v.(Null)
	return ok || v == nil
}

// supportedKinds documents the closed value algebra Encode accepts: Null,
// bool, *big.Int (integer), Decimal, string, []byte, List, Map.
var _ = []interface{}{
	Null{}, false, big.NewInt(0), Decimal{}, "", []byte(nil), List{}, Map{},
}
