package service

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	// FeeAmount is charged in the reference asset on every lock creation (5.0 at 6 decimals).
	FeeAmount uint64 = 5_000_000
	// FeeDecimals is the precision of the reference asset.
	FeeDecimals int32 = 6
)

// MaxStorable is the largest amount or timestamp a signed 64-bit column holds.
const MaxStorable uint64 = math.MaxInt64

func checkedAdd(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || sum.GtUint64(MaxStorable) {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum.Uint64(), nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, underflow := new(uint256.Int).SubOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if underflow {
		return 0, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, a, b)
	}
	return diff.Uint64(), nil
}

// FormatUnits renders a minor-unit amount with the given number of decimals, e.g. 5000000 -> "5.000000".
func FormatUnits(amount uint64, decimals int32) string {
	return decimal.NewFromBigInt(uint256.NewInt(amount).ToBig(), -decimals).StringFixed(decimals)
}
