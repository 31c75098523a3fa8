// Package money provides an exact decimal scalar for the ledger's running
// sums, keeping cumulative cash/P&L arithmetic free of float64 drift.
package money

import "github.com/shopspring/decimal"

// Value is a monetary scalar backed by decimal.Decimal. All ledger-level
// accumulation (cash, realized P&L, total equity) is carried in Value;
// float64 is used only at boundaries (indicators, strategy prices,
// reporting), per the "mixing floating-point into the ledger's running
// sums is forbidden" rule.
type Value struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Value{d: decimal.Zero}

// FromFloat64 converts a float64 boundary value into an exact Value.
func FromFloat64(f float64) Value {
	return Value{d: decimal.NewFromFloat(f)}
}

// Float64 converts back to float64 for indicator math and reporting.
func (v Value) Float64() float64 {
	f, _ := v.d.Float64()
	return f
}

func (v Value) Add(o Value) Value { return Value{d: v.d.Add(o.d)} }
func (v Value) Sub(o Value) Value { return Value{d: v.d.Sub(o.d)} }
func (v Value) Neg() Value        { return Value{d: v.d.Neg()} }

// MulFloat multiplies by a dimensionless float64 (e.g. a quantity or rate
// that legitimately lives outside the monetary domain).
func (v Value) MulFloat(f float64) Value {
	return Value{d: v.d.Mul(decimal.NewFromFloat(f))}
}

func (v Value) Cmp(o Value) int { return v.d.Cmp(o.d) }
func (v Value) IsZero() bool    { return v.d.IsZero() }
func (v Value) IsNegative() bool {
	return v.d.Sign() < 0
}

func (v Value) String() string { return v.d.StringFixed(8) }
