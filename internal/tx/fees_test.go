package tx

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/gasbridge/internal/testutil"
)

func TestFeeArithmetic(t *testing.T) {
	t.Run("max fee floors the base fee headroom", func(t *testing.T) {
		assert.Equal(t, "13500000000", MaxFeePerGas(big.NewInt(10_000_000_000), big.NewInt(1_000_000_000)).String())
		// floor(7*1.25) = 8
		assert.Equal(t, "9", MaxFeePerGas(big.NewInt(7), big.NewInt(1)).String())
		assert.Equal(t, "0", MaxFeePerGas(big.NewInt(0), big.NewInt(0)).String())
	})

	t.Run("gas limit ceils the estimate headroom", func(t *testing.T) {
		assert.Equal(t, uint64(26250), GasLimit(21000))
		// ceil(1*1.25) = 2, ceil(3*1.25) = 4, ceil(4*1.25) = 5
		assert.Equal(t, uint64(2), GasLimit(1))
		assert.Equal(t, uint64(4), GasLimit(3))
		assert.Equal(t, uint64(5), GasLimit(4))
		assert.Equal(t, uint64(0), GasLimit(0))
	})

	t.Run("max gas cost", func(t *testing.T) {
		fees := NewFeeEstimate(21000, big.NewInt(10_000_000_000), big.NewInt(1_000_000_000))
		assert.Equal(t, "13500000000", fees.MaxFeePerGas.String())
		assert.Equal(t, uint64(26250), fees.GasLimit)
		assert.Equal(t, "354375000000000", fees.MaxGasCost.String())
	})

	t.Run("large values stay exact", func(t *testing.T) {
		base, _ := new(big.Int).SetString("123456789012345678901", 10)
		// floor(123456789012345678901*5/4) = 154320986265432098626
		assert.Equal(t, "154320986265432098627", MaxFeePerGas(base, big.NewInt(1)).String())
	})
}

func TestEstimateFees(t *testing.T) {
	payload := Payload{
		From:  common.HexToAddress(testutil.DevAddress),
		To:    common.HexToAddress("0x391E7C679d29bD940d63be94AD22A25d25b5A604"),
		Value: big.NewInt(950),
		Data:  []byte{0x01},
	}

	t.Run("reads estimate, base fee and tip", func(t *testing.T) {
		node := &testutil.FakeNode{Gas: 21000, BaseFee: big.NewInt(10_000_000_000), Tip: big.NewInt(1_000_000_000)}

		fees, err := EstimateFees(context.Background(), node, payload)
		require.NoError(t, err)
		assert.Equal(t, "354375000000000", fees.MaxGasCost.String())

		require.Len(t, node.EstimateCalls, 1)
		call := node.EstimateCalls[0]
		assert.Equal(t, payload.From, call.From)
		assert.Equal(t, payload.To, *call.To)
		assert.Equal(t, "950", call.Value.String())
		assert.Equal(t, []byte{0x01}, call.Data)
	})

	t.Run("estimation failure", func(t *testing.T) {
		node := &testutil.FakeNode{GasErr: errors.New("execution reverted")}
		_, err := EstimateFees(context.Background(), node, payload)
		assert.ErrorIs(t, err, ErrGasEstimation)
	})

	t.Run("legacy chain without base fee", func(t *testing.T) {
		node := &testutil.FakeNode{Gas: 21000}
		_, err := EstimateFees(context.Background(), node, payload)
		assert.ErrorIs(t, err, ErrNoBaseFee)
	})
}
