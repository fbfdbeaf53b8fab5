package engine

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/rand"

	"github.com/shopspring/decimal"
	"github.com/yolodolo42/gasbridge/internal/chain"
)

// Mode selects how the preliminary amount is derived.
type Mode int

const (
	// ModeWithdrawMax sends the balance minus the worst-case gas cost.
	ModeWithdrawMax Mode = iota
	// ModeFixedRange sends a random amount drawn from [Low, High].
	ModeFixedRange
)

func (m Mode) String() string {
	switch m {
	case ModeFixedRange:
		return "fixed_range"
	default:
		return "withdraw_max"
	}
}

// ErrInvalidRange is returned for a fixed range that cannot be drawn from.
var ErrInvalidRange = errors.New("invalid amount range")

var maxGridValue = decimal.NewFromInt(math.MaxInt64)

const (
	// Withdraw-max quotes 95% of the balance before gas is known.
	preliminaryPercent = 95
	DefaultPrecision   = 6
)

// AmountStrategy produces the phase-one amount for a wallet.
type AmountStrategy struct {
	Mode      Mode
	Low, High decimal.Decimal
	Precision int32

	// Int64N returns a uniform value in [0, n). Defaults to math/rand.
	Int64N func(n int64) int64
}

// WithdrawMax returns the balance-derived strategy.
func WithdrawMax() AmountStrategy {
	return AmountStrategy{Mode: ModeWithdrawMax}
}

// FixedRange returns a strategy drawing from [low, high] at precision
// fractional digits.
func FixedRange(low, high decimal.Decimal, precision int32) AmountStrategy {
	return AmountStrategy{Mode: ModeFixedRange, Low: low, High: high, Precision: precision}
}

func (s AmountStrategy) precision() int32 {
	if s.Precision < 0 {
		return DefaultPrecision
	}
	return s.Precision
}

// Validate checks that a fixed range is non-negative, holds at least one
// value at Precision digits and fits the draw grid. Withdraw-max always
// validates.
func (s AmountStrategy) Validate() error {
	if s.Mode != ModeFixedRange {
		return nil
	}
	precision := s.precision()
	if s.Low.IsNegative() {
		return fmt.Errorf("%w: lower bound %s is negative", ErrInvalidRange, s.Low)
	}
	lo := s.Low.Shift(precision).Ceil()
	hi := s.High.Shift(precision).Floor()
	if hi.GreaterThan(maxGridValue) {
		return fmt.Errorf("%w: upper bound %s is too large at precision %d", ErrInvalidRange, s.High, precision)
	}
	if lo.GreaterThan(hi) {
		return fmt.Errorf("%w: [%s, %s] holds no amount at precision %d", ErrInvalidRange, s.Low, s.High, precision)
	}
	return nil
}

// Draw picks a uniform amount in whole units from the inclusive range,
// quantized to Precision digits. The range must pass Validate.
func (s AmountStrategy) Draw() decimal.Decimal {
	precision := s.precision()

	lo := s.Low.Shift(precision).Ceil().IntPart()
	hi := s.High.Shift(precision).Floor().IntPart()
	if hi <= lo {
		return decimal.New(lo, -precision)
	}

	int64n := s.Int64N
	if int64n == nil {
		int64n = rand.Int63n
	}
	return decimal.New(lo+int64n(hi-lo+1), -precision)
}

// Preliminary returns the phase-one amount in base units.
func (s AmountStrategy) Preliminary(balance *big.Int, decimals int) (*big.Int, error) {
	switch s.Mode {
	case ModeFixedRange:
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return chain.ToBaseUnits(s.Draw(), decimals), nil
	case ModeWithdrawMax:
		if balance == nil {
			return nil, fmt.Errorf("balance unknown")
		}
		amount := new(big.Int).Mul(balance, big.NewInt(preliminaryPercent))
		return amount.Quo(amount, big.NewInt(100)), nil
	default:
		return nil, fmt.Errorf("unknown amount mode %d", s.Mode)
	}
}

// Final derives the sendable amount from the preliminary amount and the
// worst-case gas cost. Fixed-range amounts are kept as drawn.
func (s AmountStrategy) Final(preliminary, balance, maxGasCost *big.Int) *big.Int {
	if s.Mode == ModeFixedRange {
		return new(big.Int).Set(preliminary)
	}
	return new(big.Int).Sub(balance, maxGasCost)
}
