package encoding

import (
	"math/big"
	"strings"
)

// Decimal is a fixed-precision decimal: value == Unscaled * 10^(-Scale).
// It is kept distinct from plain integers so a numeric literal rewritten by
// the compiler (spec.md §4.5 stage 2 rule 4) round-trips exactly instead of
// being coerced through a float.
type Decimal struct {
	Unscaled *big.Int
	Scale    int32
}

// NewDecimal builds a canonical Decimal: trailing zero digits of the
// mantissa are folded into the scale, and zero is always represented with
// Scale 0 and a non-negative Unscaled (no "-0").
func NewDecimal(unscaled *big.Int, scale int32) Decimal {
	u := new(big.Int).Set(unscaled)
	if u.Sign() == 0 {
		return Decimal{Unscaled: big.NewInt(0), Scale: 0}
	}
	ten := big.NewInt(10)
	rem := new(big.Int)
	for scale > 0 {
		q, r := new(big.Int).QuoRem(u, ten, rem)
		if r.Sign() != 0 {
			break
		}
		u = q
		scale--
	}
	return Decimal{Unscaled: u, Scale: scale}
}

// DecimalFromInt64 builds an integral decimal (scale 0).
func DecimalFromInt64(v int64) Decimal {
	return NewDecimal(big.NewInt(v), 0)
}

// Equal compares two canonical decimals for value equality.
func (d Decimal) Equal(o Decimal) bool {
	return d.Scale == o.Scale && d.Unscaled.Cmp(o.Unscaled) == 0
}

// String renders the decimal in plain notation, e.g. "123.45".
func (d Decimal) String() string {
	if d.Scale <= 0 {
		return new(big.Int).Mul(d.Unscaled, pow10(-d.Scale)).String()
	}
	s := new(big.Int).Abs(d.Unscaled).String()
	for int32(len(s)) <= d.Scale {
		s = "0" + s
	}
	intPart := s[:int32(len(s))-d.Scale]
	fracPart := s[int32(len(s))-d.Scale:]
	sign := ""
	if d.Unscaled.Sign() < 0 {
		sign = "-"
	}
	return sign + intPart + "." + fracPart
}

// ParseDecimal parses a plain-notation literal ("123", "-12.50") into a
// canonical Decimal, rejecting a fractional part longer than maxPrecision
// digits (spec.md's DecimalPrecision cap on the numeric-literal wrapper
// Rewrite injects around every source literal).
func ParseDecimal(text string, maxPrecision int32) (Decimal, error) {
	sign := ""
	rest := text
	if strings.HasPrefix(rest, "-") || strings.HasPrefix(rest, "+") {
		sign = rest[:1]
		rest = rest[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(rest, ".")
	if intPart == "" && !hasFrac {
		return Decimal{}, ErrMalformedValue
	}
	if intPart == "" {
		intPart = "0"
	}
	if int32(len(fracPart)) > maxPrecision {
		return Decimal{}, ErrMalformedValue
	}
	digits := sign + intPart + fracPart
	u, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, ErrMalformedValue
	}
	return NewDecimal(u, int32(len(fracPart))), nil
}

func pow10(n int32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
