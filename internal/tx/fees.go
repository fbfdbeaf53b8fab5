package tx

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/gasbridge/internal/chain"
)

// Headroom is applied as Num/Den (5/4 = 25%).
const (
	headroomNum = 5
	headroomDen = 4
)

var (
	ErrGasEstimation = errors.New("gas estimation failed")
	ErrNoBaseFee     = errors.New("latest block has no base fee (chain is not EIP-1559)")
)

// FeeEstimate is the fee picture for one payload at the current block.
type FeeEstimate struct {
	BaseFee      *big.Int
	PriorityFee  *big.Int
	MaxFeePerGas *big.Int
	GasEstimate  uint64
	GasLimit     uint64
	MaxGasCost   *big.Int
}

// MaxFeePerGas returns floor(baseFee*1.25) + priorityFee.
func MaxFeePerGas(baseFee, priorityFee *big.Int) *big.Int {
	fee := new(big.Int).Mul(baseFee, big.NewInt(headroomNum))
	fee.Quo(fee, big.NewInt(headroomDen))
	return fee.Add(fee, priorityFee)
}

// GasLimit returns ceil(estimate*1.25).
func GasLimit(estimate uint64) uint64 {
	g := new(big.Int).Mul(new(big.Int).SetUint64(estimate), big.NewInt(headroomNum))
	g.Add(g, big.NewInt(headroomDen-1))
	g.Quo(g, big.NewInt(headroomDen))
	return g.Uint64()
}

// MaxGasCost returns gasLimit * maxFeePerGas.
func MaxGasCost(gasLimit uint64, maxFeePerGas *big.Int) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), maxFeePerGas)
}

// NewFeeEstimate derives the headroom-adjusted figures from raw node values.
func NewFeeEstimate(gasEstimate uint64, baseFee, priorityFee *big.Int) FeeEstimate {
	maxFee := MaxFeePerGas(baseFee, priorityFee)
	limit := GasLimit(gasEstimate)
	return FeeEstimate{
		BaseFee:      new(big.Int).Set(baseFee),
		PriorityFee:  new(big.Int).Set(priorityFee),
		MaxFeePerGas: maxFee,
		GasEstimate:  gasEstimate,
		GasLimit:     limit,
		MaxGasCost:   MaxGasCost(limit, maxFee),
	}
}

// Payload is the call a fee estimate is computed for.
type Payload struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// EstimateFees estimates gas for payload, then reads the latest base fee and
// the suggested priority fee.
func EstimateFees(ctx context.Context, node chain.Node, payload Payload) (FeeEstimate, error) {
	to := payload.To
	gas, err := node.EstimateGas(ctx, ethereum.CallMsg{
		From:  payload.From,
		To:    &to,
		Value: payload.Value,
		Data:  payload.Data,
	})
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("%w: %v", ErrGasEstimation, err)
	}

	header, err := node.HeaderByNumber(ctx, nil)
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("read latest block: %w", err)
	}
	if header.BaseFee == nil {
		return FeeEstimate{}, ErrNoBaseFee
	}

	tip, err := node.SuggestGasTipCap(ctx)
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("suggest priority fee: %w", err)
	}

	return NewFeeEstimate(gas, header.BaseFee, tip), nil
}
