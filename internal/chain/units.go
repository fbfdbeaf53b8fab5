package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// displayPrecision caps the fractional digits shown for native amounts.
const displayPrecision = 6

// FormatBalance renders base units as a decimal string, truncated to at most
// six fractional digits.
func FormatBalance(balance *big.Int, decimals int) string {
	if balance == nil {
		return "0"
	}

	places := int32(decimals)
	if places > displayPrecision {
		places = displayPrecision
	}
	return decimal.NewFromBigInt(balance, -int32(decimals)).Truncate(places).StringFixed(places)
}

// ToBaseUnits converts a whole-unit amount into base units, dropping any
// fraction finer than the chain's decimals.
func ToBaseUnits(amount decimal.Decimal, decimals int) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}
