package tx

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/yolodolo42/gasbridge/internal/chain"
)

var (
	ErrValueMissing  = errors.New("value missing")
	ErrZeroRecipient = errors.New("deposit target is the zero address")
	ErrExceedsLimit  = errors.New("value plus max gas cost exceeds spend limit")
)

// Intent is a deposit the engine has decided to send: the final quote's
// payload plus the fees estimated for it.
type Intent struct {
	ChainID *big.Int
	From    common.Address
	To      common.Address
	Value   *big.Int
	Data    []byte
	Fees    FeeEstimate
}

// Policy enforces safety constraints before building.
type Policy struct {
	// MaxSpend caps value + max gas cost. Nil disables the check.
	MaxSpend *big.Int
}

// TotalCost is the worst case the sender can be charged.
func (i Intent) TotalCost() *big.Int {
	total := new(big.Int)
	if i.Value != nil {
		total.Set(i.Value)
	}
	if i.Fees.MaxGasCost != nil {
		total.Add(total, i.Fees.MaxGasCost)
	}
	return total
}

// Validate applies the spend limit and basic shape checks.
func Validate(intent Intent, policy Policy) error {
	if intent.Value == nil {
		return ErrValueMissing
	}
	if intent.To == (common.Address{}) {
		return ErrZeroRecipient
	}
	if policy.MaxSpend != nil && intent.TotalCost().Cmp(policy.MaxSpend) > 0 {
		return ErrExceedsLimit
	}
	return nil
}

// BuildUnsignedTx prepares an unsigned EIP-1559 transaction. The nonce is
// always read fresh from the node.
func BuildUnsignedTx(ctx context.Context, node chain.Node, intent Intent) (*types.Transaction, error) {
	if intent.Value == nil {
		return nil, ErrValueMissing
	}
	if intent.ChainID == nil {
		return nil, fmt.Errorf("chain id missing")
	}
	if intent.Fees.MaxFeePerGas == nil || intent.Fees.PriorityFee == nil {
		return nil, fmt.Errorf("fee estimate missing")
	}

	nonce, err := node.PendingNonceAt(ctx, intent.From)
	if err != nil {
		return nil, fmt.Errorf("read pending nonce: %w", err)
	}

	to := intent.To
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).Set(intent.ChainID),
		Nonce:     nonce,
		GasTipCap: new(big.Int).Set(intent.Fees.PriorityFee),
		GasFeeCap: new(big.Int).Set(intent.Fees.MaxFeePerGas),
		Gas:       intent.Fees.GasLimit,
		To:        &to,
		Value:     new(big.Int).Set(intent.Value),
		Data:      append([]byte(nil), intent.Data...),
	}), nil
}
