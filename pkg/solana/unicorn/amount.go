package unicorn

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// DefaultUnitScale is the number of smallest units per human unit.
const DefaultUnitScale uint64 = 1_000_000_000

// Plain decimal with an optional short exponent. big.Rat alone would also take
// fractions and base prefixes such as "1/2" or "0x10/1".
var decimalAmount = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d{1,3})?$`)

// ToBaseUnits converts a decimal string in human units to smallest units.
// The product with scale must be an exact non-negative integer that fits in
// a uint64; anything else is ErrInvalidAmount.
func ToBaseUnits(amount string, scale uint64) (uint64, error) {
	const op = "to base units"
	s := strings.TrimSpace(amount)
	if s == "" {
		return 0, newError(KindInvalidInput, op, "empty amount", ErrInvalidAmount)
	}

	if !decimalAmount.MatchString(s) {
		return 0, newError(KindInvalidInput, op, "not a decimal number: "+amount, ErrInvalidAmount)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, newError(KindInvalidInput, op, "not a number: "+amount, ErrInvalidAmount)
	}
	if r.Sign() < 0 {
		return 0, newError(KindInvalidInput, op, "negative amount: "+amount, ErrInvalidAmount)
	}

	r.Mul(r, new(big.Rat).SetInt(new(big.Int).SetUint64(scale)))
	if !r.IsInt() {
		return 0, newError(KindInvalidInput, op, amount+" is finer than the smallest unit", ErrInvalidAmount)
	}
	n := r.Num()
	if !n.IsUint64() {
		return 0, newError(KindInvalidInput, op, amount+" overflows u64", ErrInvalidAmount)
	}
	return n.Uint64(), nil
}

// FloatToBaseUnits is ToBaseUnits for float inputs, using the shortest
// decimal representation of f.
func FloatToBaseUnits(f float64, scale uint64) (uint64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, newError(KindInvalidInput, "to base units", "non-finite amount", ErrInvalidAmount)
	}
	return ToBaseUnits(strconv.FormatFloat(f, 'f', -1, 64), scale)
}

// FromBaseUnits renders smallest units as a human amount for display only.
func FromBaseUnits(v uint64, scale uint64) float64 {
	if scale == 0 {
		return float64(v)
	}
	return float64(v) / float64(scale)
}

// FormatBaseUnits renders smallest units as an exact decimal string.
func FormatBaseUnits(v uint64, scale uint64) string {
	if scale == 0 {
		return strconv.FormatUint(v, 10)
	}
	r := new(big.Rat).SetFrac(new(big.Int).SetUint64(v), new(big.Int).SetUint64(scale))
	digits := len(strconv.FormatUint(scale, 10)) - 1
	s := r.FloatString(digits)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
