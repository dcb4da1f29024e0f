package encoding

import "math/big"

// alignedScale returns both decimals' unscaled values rescaled to the same
// (maximum) scale, so they can be added/subtracted/compared directly.
func alignedScale(a, b Decimal) (*big.Int, *big.Int, int32) {
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	au := new(big.Int).Mul(a.Unscaled, pow10(scale-a.Scale))
	bu := new(big.Int).Mul(b.Unscaled, pow10(scale-b.Scale))
	return au, bu, scale
}

// Add returns a+b as a canonical Decimal.
func (d Decimal) Add(o Decimal) Decimal {
	au, bu, scale := alignedScale(d, o)
	return NewDecimal(new(big.Int).Add(au, bu), scale)
}

// Sub returns a-b as a canonical Decimal.
func (d Decimal) Sub(o Decimal) Decimal {
	au, bu, scale := alignedScale(d, o)
	return NewDecimal(new(big.Int).Sub(au, bu), scale)
}

// Mul returns a*b as a canonical Decimal.
func (d Decimal) Mul(o Decimal) Decimal {
	u := new(big.Int).Mul(d.Unscaled, o.Unscaled)
	return NewDecimal(u, d.Scale+o.Scale)
}

// Div returns a/b rounded to precision fractional digits (truncating,
// toward zero), as a canonical Decimal. Division by zero panics with
// ErrDivideByZero; callers running inside the sandbox should recover it
// into a trapped contract failure.
func (d Decimal) Div(o Decimal, precision int32) Decimal {
	if o.Unscaled.Sign() == 0 {
		panic(ErrDivideByZero)
	}
	numerator := new(big.Int).Mul(d.Unscaled, pow10(o.Scale+precision))
	denominator := new(big.Int).Mul(o.Unscaled, pow10(d.Scale))
	q := new(big.Int).Quo(numerator, denominator)
	return NewDecimal(q, precision)
}

// Mod returns a%b as a canonical Decimal. The remainder truncates toward
// zero, so its sign follows a; this differs from Python's "%" (whose sign
// follows b) whenever a and b have opposite signs.
func (d Decimal) Mod(o Decimal) Decimal {
	au, bu, scale := alignedScale(d, o)
	r := new(big.Int).Rem(au, bu)
	return NewDecimal(r, scale)
}

// Neg returns -a.
func (d Decimal) Neg() Decimal {
	return NewDecimal(new(big.Int).Neg(d.Unscaled), d.Scale)
}

// Cmp compares a and b: -1, 0, or 1.
func (d Decimal) Cmp(o Decimal) int {
	au, bu, _ := alignedScale(d, o)
	return au.Cmp(bu)
}

// Sign returns -1, 0, or 1 per the sign of the value.
func (d Decimal) Sign() int { return d.Unscaled.Sign() }

// IsZero reports whether the decimal is exactly zero.
func (d Decimal) IsZero() bool { return d.Unscaled.Sign() == 0 }
