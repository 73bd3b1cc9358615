package number

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimal is an unsigned fixed-point value with 18 fractional digits.
// The mantissa is kept in a 256-bit integer but every operation bounds the
// result to the 128-bit range, so a full-width multiplication can never
// overflow before the trailing division by the scale.
type Decimal struct {
	v uint256.Int
}

// Precision fractional digits carried by every Decimal
const Precision = 18

var (
	// ErrOverflow math operation overflow
	ErrOverflow = errors.New("number: overflow")
	// ErrUnderflow math operation underflow
	ErrUnderflow = errors.New("number: underflow")
	// ErrDivisionByZero division by zero
	ErrDivisionByZero = errors.New("number: division by zero")
)

var (
	scale = uint256.NewInt(1_000_000_000_000_000_000)

	// largest representable mantissa, 2^128-1
	maxMantissa = &uint256.Int{^uint64(0), ^uint64(0), 0, 0}

	// maxSafe leaves one decimal order-of-magnitude headroom (mantissa/1e6)
	// so a value below the ceiling survives one more multiplication chain.
	maxSafe = new(uint256.Int).Div(maxMantissa, uint256.NewInt(1_000_000))

	// maxInt is the ceiling for integer conversions, half the uint64 range.
	maxInt = ^uint64(0) / 2
)

// Zero the zero value
func Zero() Decimal {
	return Decimal{}
}

// One 1.0 at the canonical scale
func One() Decimal {
	var d Decimal
	d.v.Set(scale)
	return d
}

// MaxSafeValue the documented safe ceiling. Used as the "infinite" health
// factor sentinel for debt-free obligations.
func MaxSafeValue() Decimal {
	var d Decimal
	d.v.Set(maxSafe)
	return d
}

// FromInt converts an integer amount, rejecting values above the safe
// integer ceiling so the scaled result keeps multiplication headroom.
func FromInt(val uint64) (Decimal, error) {
	if val > maxInt {
		return Decimal{}, ErrOverflow
	}

	var d Decimal
	d.v.Mul(uint256.NewInt(val), scale)
	return d, nil
}

// FromScaled builds a Decimal from an already-scaled raw mantissa.
func FromScaled(raw *big.Int) (Decimal, error) {
	if raw == nil || raw.Sign() < 0 {
		return Decimal{}, ErrUnderflow
	}

	v, overflow := uint256.FromBig(raw)
	if overflow || v.Gt(maxMantissa) {
		return Decimal{}, ErrOverflow
	}

	var d Decimal
	d.v.Set(v)
	return d, nil
}

// FromBps converts basis points (1/10000) to a Decimal. The input range is
// bounded well below any overflow so no error is possible.
func FromBps(bps uint64) Decimal {
	var d Decimal
	d.v.Mul(uint256.NewInt(bps), scale)
	d.v.Div(&d.v, uint256.NewInt(10_000))
	return d
}

// FromAmount converts a native token amount with the given decimal precision
// to the canonical scale.
func FromAmount(amount uint64, decimals uint8) (Decimal, error) {
	if decimals > 30 {
		return Decimal{}, ErrOverflow
	}

	var d Decimal
	d.v.Mul(uint256.NewInt(amount), scale)
	d.v.Div(&d.v, new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals))))
	return d, nil
}

// FromDecimal converts a shopspring decimal from the API boundary.
func FromDecimal(d decimal.Decimal) (Decimal, error) {
	if d.IsNegative() {
		return Decimal{}, ErrUnderflow
	}

	return FromScaled(d.Shift(Precision).Truncate(0).BigInt())
}

// Add returns d + rhs, failing with ErrOverflow on wraparound.
func (d Decimal) Add(rhs Decimal) (Decimal, error) {
	var out Decimal
	if _, overflow := out.v.AddOverflow(&d.v, &rhs.v); overflow || out.v.Gt(maxMantissa) {
		return Decimal{}, ErrOverflow
	}
	return out, nil
}

// Sub returns d - rhs, failing with ErrUnderflow when rhs exceeds d.
func (d Decimal) Sub(rhs Decimal) (Decimal, error) {
	if rhs.v.Gt(&d.v) {
		return Decimal{}, ErrUnderflow
	}

	var out Decimal
	out.v.Sub(&d.v, &rhs.v)
	return out, nil
}

// Mul returns d * rhs. Both operands fit 128 bits, so the 256-bit product
// cannot wrap before the division by the scale; only the final quotient is
// bounds-checked.
func (d Decimal) Mul(rhs Decimal) (Decimal, error) {
	var out Decimal
	out.v.Mul(&d.v, &rhs.v)
	out.v.Div(&out.v, scale)
	if out.v.Gt(maxMantissa) {
		return Decimal{}, ErrOverflow
	}
	return out, nil
}

// Div returns d / rhs.
func (d Decimal) Div(rhs Decimal) (Decimal, error) {
	if rhs.v.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}

	var out Decimal
	out.v.Mul(&d.v, scale)
	out.v.Div(&out.v, &rhs.v)
	if out.v.Gt(maxMantissa) {
		return Decimal{}, ErrOverflow
	}
	return out, nil
}

// MulInt multiplies by a native integer amount and floors back to an
// integer, failing with ErrOverflow if the result exceeds uint64.
func (d Decimal) MulInt(rhs uint64) (uint64, error) {
	var out uint256.Int
	out.Mul(&d.v, uint256.NewInt(rhs))
	out.Div(&out, scale)
	if !out.IsUint64() {
		return 0, ErrOverflow
	}
	return out.Uint64(), nil
}

// FloorInt truncates the fractional digits and returns the integer part.
func (d Decimal) FloorInt() (uint64, error) {
	var out uint256.Int
	out.Div(&d.v, scale)
	if !out.IsUint64() {
		return 0, ErrOverflow
	}
	return out.Uint64(), nil
}

// IsZero reports whether the value is exactly zero.
func (d Decimal) IsZero() bool {
	return d.v.IsZero()
}

// Cmp compares two Decimals, returning -1, 0 or 1.
func (d Decimal) Cmp(rhs Decimal) int {
	return d.v.Cmp(&rhs.v)
}

// Equal reports d == rhs
func (d Decimal) Equal(rhs Decimal) bool {
	return d.v.Eq(&rhs.v)
}

// LessThan reports d < rhs
func (d Decimal) LessThan(rhs Decimal) bool {
	return d.v.Lt(&rhs.v)
}

// LessThanOrEqual reports d <= rhs
func (d Decimal) LessThanOrEqual(rhs Decimal) bool {
	return !d.v.Gt(&rhs.v)
}

// GreaterThan reports d > rhs
func (d Decimal) GreaterThan(rhs Decimal) bool {
	return d.v.Gt(&rhs.v)
}

// GreaterThanOrEqual reports d >= rhs
func (d Decimal) GreaterThanOrEqual(rhs Decimal) bool {
	return !d.v.Lt(&rhs.v)
}

// Min returns the smaller of the two values.
func (d Decimal) Min(rhs Decimal) Decimal {
	if d.v.Gt(&rhs.v) {
		return rhs
	}
	return d
}

// Max returns the larger of the two values.
func (d Decimal) Max(rhs Decimal) Decimal {
	if d.v.Lt(&rhs.v) {
		return rhs
	}
	return d
}

// Scaled returns the raw mantissa.
func (d Decimal) Scaled() *big.Int {
	return d.v.ToBig()
}

// ToDecimal converts to a shopspring decimal for views and wire payloads.
func (d Decimal) ToDecimal() decimal.Decimal {
	return decimal.NewFromBigInt(d.v.ToBig(), -Precision)
}

func (d Decimal) String() string {
	return d.ToDecimal().String()
}

// MarshalJSON renders the value as a decimal string.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return d.ToDecimal().MarshalJSON()
}

// UnmarshalJSON parses a decimal string or number.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	var v decimal.Decimal
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}

	parsed, err := FromDecimal(v)
	if err != nil {
		return err
	}

	*d = parsed
	return nil
}

// Value implements driver.Valuer, persisting the decimal string form.
func (d Decimal) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner.
func (d *Decimal) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*d = Zero()
		return nil
	default:
		return fmt.Errorf("number: cannot scan %T into Decimal", value)
	}

	parsed, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}

	out, err := FromDecimal(parsed)
	if err != nil {
		return err
	}

	*d = out
	return nil
}

// Must panics on a math error; reserved for static initialization.
func Must(d Decimal, err error) Decimal {
	if err != nil {
		panic(err)
	}
	return d
}
