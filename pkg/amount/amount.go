// Package amount implements checked 128-bit fixed-point arithmetic for
// token values. Amounts are unsigned and carry no implicit rounding;
// every operation that could exceed the 128-bit width reports ErrOverflow
// instead of wrapping.
package amount

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"
)

// ErrOverflow is returned when an arithmetic result does not fit in the
// 128-bit width.
var ErrOverflow = errors.New("arithmetic overflow")

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Amount is an unsigned 128-bit fixed-point value. The zero value is zero.
type Amount struct {
	v *big.Int
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

// FromUint64 builds an amount from a uint64.
func FromUint64(v uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(v)}
}

// Parse parses a base-10 string into an amount.
func Parse(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("negative amount %q", s)
	}
	if v.Cmp(maxUint128) > 0 {
		return Amount{}, ErrOverflow
	}
	return Amount{v: v}, nil
}

// MustParse parses s and panics on error. Intended for tests and constants.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.v == nil || a.v.Sign() == 0
}

// Cmp compares a and b, returning -1, 0 or 1.
func (a Amount) Cmp(b Amount) int {
	return a.big().Cmp(b.big())
}

// Equal reports whether a and b are the same value.
func (a Amount) Equal(b Amount) bool {
	return a.Cmp(b) == 0
}

// Add returns a+b, or ErrOverflow if the sum exceeds the 128-bit width.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := new(big.Int).Add(a.big(), b.big())
	if sum.Cmp(maxUint128) > 0 {
		return Amount{}, ErrOverflow
	}
	return Amount{v: sum}, nil
}

// Sub returns a-b. Underflow below zero is an error: amounts are unsigned.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Cmp(b) < 0 {
		return Amount{}, fmt.Errorf("amount underflow: %s - %s", a, b)
	}
	return Amount{v: new(big.Int).Sub(a.big(), b.big())}, nil
}

// Mul returns a*b, or ErrOverflow if the product exceeds the 128-bit width.
func (a Amount) Mul(b Amount) (Amount, error) {
	prod := new(big.Int).Mul(a.big(), b.big())
	if prod.Cmp(maxUint128) > 0 {
		return Amount{}, ErrOverflow
	}
	return Amount{v: prod}, nil
}

// MulUint64 returns a*n with overflow checking.
func (a Amount) MulUint64(n uint64) (Amount, error) {
	return a.Mul(FromUint64(n))
}

// Div returns a/n truncated toward zero. Division by zero is an error.
func (a Amount) Div(n uint64) (Amount, error) {
	if n == 0 {
		return Amount{}, errors.New("division by zero")
	}
	return Amount{v: new(big.Int).Quo(a.big(), new(big.Int).SetUint64(n))}, nil
}

// String renders the amount in base 10.
func (a Amount) String() string {
	return a.big().String()
}

// Float64 returns the amount as a float64 for metrics and display. Values
// above 2^53 lose precision; exact arithmetic must stay on Amount.
func (a Amount) Float64() float64 {
	f, _ := new(big.Float).SetInt(a.big()).Float64()
	return f
}

// MarshalJSON encodes the amount as a decimal string, matching the wire
// convention for 128-bit token values.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes a decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("amount must be a JSON string, got %s", s)
	}
	parsed, err := Parse(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer so amounts persist as decimal strings.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		return a.Scan(string(v))
	case int64:
		if v < 0 {
			return fmt.Errorf("negative amount %d", v)
		}
		*a = FromUint64(uint64(v))
		return nil
	case nil:
		*a = Zero()
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Amount", src)
	}
}

// Sum adds all values with overflow checking.
func Sum(values ...Amount) (Amount, error) {
	total := Zero()
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return Amount{}, err
		}
		total = next
	}
	return total, nil
}
