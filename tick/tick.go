// Package tick implements the fixed-point price/size codec shared by every
// venue adapter: decimal strings as quoted by an exchange on one side,
// integer tick counts as carried through the order book and matching
// engine on the other.
package tick

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/govalues/decimal"
)

// Unit is an unsigned quantity measured in ticks. Prices, sizes and
// commissions are all Unit values once decoded.
type Unit = uint64

// ErrZeroTicksPerUnit is returned by New when asked to build a degenerate
// lattice.
var ErrZeroTicksPerUnit = errors.New("tick: ticks_per_unit must be > 0")

// ErrNonIntegral is returned by Decode when the decimal string does not
// land on a tick boundary for this lattice.
var ErrNonIntegral = errors.New("tick: value is not an integral number of ticks")

// ErrNotDivisible is returned by Encode when ticksPerUnit does not divide
// any power of ten, so no finite decimal representation exists.
var ErrNotDivisible = errors.New("tick: ticks_per_unit does not divide a power of ten")

// Tick defines a fixed-point lattice: ticksPerUnit minimum increments make
// up one quoted unit (e.g. one dollar, one BTC).
type Tick struct {
	ticksPerUnit uint64
}

// New builds a Tick lattice. It fails if ticksPerUnit is zero.
func New(ticksPerUnit uint64) (Tick, error) {
	if ticksPerUnit == 0 {
		return Tick{}, ErrZeroTicksPerUnit
	}
	return Tick{ticksPerUnit: ticksPerUnit}, nil
}

// TickSize parses a decimal tick-size string (e.g. "0.00000001") into the
// ticksPerUnit it denotes, the way venue symbol listings report increments.
func TickSize(s string) (Tick, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return Tick{}, fmt.Errorf("tick: parsing tick size %q: %w", s, err)
	}
	if d.IsZero() {
		return Tick{}, ErrZeroTicksPerUnit
	}
	one, _ := decimal.New(1, 0)
	perUnit, err := one.Quo(d)
	if err != nil {
		return Tick{}, fmt.Errorf("tick: inverting tick size %q: %w", s, err)
	}
	whole, ok := perUnit.Int64()
	if !ok || whole <= 0 {
		return Tick{}, fmt.Errorf("tick: tick size %q is not a clean reciprocal", s)
	}
	return New(uint64(whole))
}

// PerUnit returns the number of ticks making up one quoted unit.
func (t Tick) PerUnit() uint64 {
	return t.ticksPerUnit
}

// Decode converts a decimal string into its tick count.
//
// The integer and fractional digit groups are parsed independently, and
// an unparseable digit group (including an empty one) is treated as zero
// rather than rejected. Only the final integrality check over ticksPerUnit
// and the 64-bit overflow check on the result can fail decoding.
func (t Tick) Decode(s string) (Unit, error) {
	intPart, fracPart, _ := strings.Cut(s, ".")

	intVal := parseDigitsOrZero(intPart)
	fracVal := parseDigitsOrZero(fracPart)
	fracLen := len(fracPart)

	denom := pow10(fracLen)
	numerator := new(big.Int).Mul(intVal, denom)
	numerator.Add(numerator, fracVal)

	numerator.Mul(numerator, new(big.Int).SetUint64(t.ticksPerUnit))

	quotient, remainder := new(big.Int).QuoRem(numerator, denom, new(big.Int))
	if remainder.Sign() != 0 {
		return 0, ErrNonIntegral
	}
	if !quotient.IsUint64() {
		return 0, fmt.Errorf("tick: %q overflows a 64-bit tick count", s)
	}
	return quotient.Uint64(), nil
}

// Encode converts a tick count back into its canonical decimal string.
//
// It fails if ticksPerUnit does not divide some power of ten, in which case
// no finite decimal representation exists.
func (t Tick) Encode(ticks Unit) (string, error) {
	pow, k, err := smallestPow10GE(t.ticksPerUnit)
	if err != nil {
		return "", err
	}
	perUnit := new(big.Int).SetUint64(t.ticksPerUnit)
	// Widen to the first power of ten ticksPerUnit divides (10^4 for 16);
	// every 64-bit divisor of a power of ten divides 10^63.
	for new(big.Int).Mod(pow, perUnit).Sign() != 0 {
		if k >= 63 {
			return "", ErrNotDivisible
		}
		pow.Mul(pow, big.NewInt(10))
		k++
	}

	ticksBig := new(big.Int).SetUint64(ticks)

	whole := new(big.Int).Quo(ticksBig, perUnit)

	num := new(big.Int).Mul(pow, ticksBig)
	num.Quo(num, perUnit)
	frac := new(big.Int).Mod(num, pow)

	fracStr := frac.String()
	if pad := k - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}

	return whole.String() + "." + fracStr, nil
}

// Canonicalize parses a well-formed decimal string and re-renders it in
// its shortest normal form, e.g. "6.3500000" -> "6.35". Unlike Decode, a
// malformed input is rejected rather than treated as zero: Canonicalize is
// a convenience for callers that already trust their input (tests,
// display code), not part of the wire-decoding hot path.
func Canonicalize(s string) (string, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return "", fmt.Errorf("tick: canonicalizing %q: %w", s, err)
	}
	return d.Trim(0).String(), nil
}

func parseDigitsOrZero(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return big.NewInt(0)
	}
	return new(big.Int).SetUint64(v)
}

func pow10(k int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(k)), nil)
}

// smallestPow10GE returns the smallest 10^k >= n along with k.
func smallestPow10GE(n uint64) (*big.Int, int, error) {
	if n == 0 {
		return nil, 0, ErrZeroTicksPerUnit
	}
	target := new(big.Int).SetUint64(n)
	k := 0
	pow := big.NewInt(1)
	for pow.Cmp(target) < 0 {
		pow.Mul(pow, big.NewInt(10))
		k++
	}
	return pow, k, nil
}
