package tx

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/gasbridge/internal/testutil"
	"github.com/yolodolo42/gasbridge/internal/wallet"
)

var depositTarget = common.HexToAddress("0x391E7C679d29bD940d63be94AD22A25d25b5A604")

func testIntent() Intent {
	return Intent{
		ChainID: big.NewInt(10),
		From:    common.HexToAddress(testutil.DevAddress),
		To:      depositTarget,
		Value:   big.NewInt(645_625_000_000_000),
		Data:    []byte{0x01, 0x0a},
		Fees:    NewFeeEstimate(21000, big.NewInt(10_000_000_000), big.NewInt(1_000_000_000)),
	}
}

func testSigner(t *testing.T) *wallet.KeySigner {
	t.Helper()
	key, err := crypto.HexToECDSA(testutil.DevPrivateKey)
	require.NoError(t, err)
	signer, err := wallet.NewKeySigner(key)
	require.NoError(t, err)
	return signer
}

func TestValidate(t *testing.T) {
	intent := testIntent()

	assert.NoError(t, Validate(intent, Policy{}))
	// 645625000000000 + 354375000000000 = 1e15 exactly
	assert.NoError(t, Validate(intent, Policy{MaxSpend: big.NewInt(1_000_000_000_000_000)}))
	assert.ErrorIs(t, Validate(intent, Policy{MaxSpend: big.NewInt(999_999_999_999_999)}), ErrExceedsLimit)

	noValue := intent
	noValue.Value = nil
	assert.ErrorIs(t, Validate(noValue, Policy{}), ErrValueMissing)

	zeroTo := intent
	zeroTo.To = common.Address{}
	assert.ErrorIs(t, Validate(zeroTo, Policy{}), ErrZeroRecipient)
}

func TestBuildUnsignedTx(t *testing.T) {
	t.Run("uses quote payload, fees and a fresh nonce", func(t *testing.T) {
		node := &testutil.FakeNode{Nonce: 7}

		unsigned, err := BuildUnsignedTx(context.Background(), node, testIntent())
		require.NoError(t, err)

		assert.Equal(t, uint8(types.DynamicFeeTxType), unsigned.Type())
		assert.Equal(t, uint64(7), unsigned.Nonce())
		assert.Equal(t, uint64(26250), unsigned.Gas())
		assert.Equal(t, "13500000000", unsigned.GasFeeCap().String())
		assert.Equal(t, "1000000000", unsigned.GasTipCap().String())
		assert.Equal(t, depositTarget, *unsigned.To())
		assert.Equal(t, "645625000000000", unsigned.Value().String())
		assert.Equal(t, []byte{0x01, 0x0a}, unsigned.Data())
		assert.Equal(t, "10", unsigned.ChainId().String())
		assert.Equal(t, 1, node.NonceCalls)
	})

	t.Run("nonce is not cached between builds", func(t *testing.T) {
		node := &testutil.FakeNode{Nonce: 1}
		_, err := BuildUnsignedTx(context.Background(), node, testIntent())
		require.NoError(t, err)
		node.Nonce = 2
		second, err := BuildUnsignedTx(context.Background(), node, testIntent())
		require.NoError(t, err)
		assert.Equal(t, uint64(2), second.Nonce())
		assert.Equal(t, 2, node.NonceCalls)
	})

	t.Run("nonce failure", func(t *testing.T) {
		node := &testutil.FakeNode{NonceErr: errors.New("rpc down")}
		_, err := BuildUnsignedTx(context.Background(), node, testIntent())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pending nonce")
	})

	t.Run("missing fees", func(t *testing.T) {
		intent := testIntent()
		intent.Fees = FeeEstimate{}
		_, err := BuildUnsignedTx(context.Background(), &testutil.FakeNode{}, intent)
		assert.Error(t, err)
	})
}

func newTestSubmitter(t *testing.T, node *testutil.FakeNode, signer wallet.Signer) *Submitter {
	s := NewSubmitter(node, signer, big.NewInt(10), zerolog.Nop())
	s.ConfirmTimeout = 100 * time.Millisecond
	s.PollInterval = 5 * time.Millisecond
	return s
}

func buildTestTx(t *testing.T, node *testutil.FakeNode) *types.Transaction {
	t.Helper()
	unsigned, err := BuildUnsignedTx(context.Background(), node, testIntent())
	require.NoError(t, err)
	return unsigned
}

func TestSubmitterSend(t *testing.T) {
	t.Run("signs and broadcasts once", func(t *testing.T) {
		node := &testutil.FakeNode{}
		s := newTestSubmitter(t, node, testSigner(t))

		sub, err := s.Send(context.Background(), buildTestTx(t, node))
		require.NoError(t, err)

		assert.Equal(t, StateBroadcast, sub.State)
		require.Equal(t, 1, node.SentCount())
		assert.Equal(t, node.Sent[0].Hash(), sub.Hash)

		sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(10)), sub.Tx)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(testutil.DevAddress), sender)
	})

	t.Run("rejected broadcast is not retried", func(t *testing.T) {
		node := &testutil.FakeNode{SendErr: errors.New("insufficient funds for gas * price + value")}
		s := newTestSubmitter(t, node, testSigner(t))

		sub, err := s.Send(context.Background(), buildTestTx(t, node))
		assert.ErrorIs(t, err, ErrSubmission)
		assert.Equal(t, StateSigned, sub.State)
		assert.Equal(t, common.Hash{}, sub.Hash)
		assert.Equal(t, 0, node.SentCount())
	})

	t.Run("locked signer", func(t *testing.T) {
		node := &testutil.FakeNode{}
		signer := testSigner(t)
		signer.Lock()
		s := newTestSubmitter(t, node, signer)

		sub, err := s.Send(context.Background(), buildTestTx(t, node))
		assert.ErrorIs(t, err, ErrSigning)
		assert.Equal(t, StateBuilt, sub.State)
		assert.Equal(t, 0, node.SentCount())
	})
}

func TestSubmitterConfirm(t *testing.T) {
	send := func(t *testing.T, node *testutil.FakeNode) (*Submitter, *Submission) {
		s := newTestSubmitter(t, node, testSigner(t))
		sub, err := s.Send(context.Background(), buildTestTx(t, node))
		require.NoError(t, err)
		return s, sub
	}

	t.Run("confirmed after pending polls", func(t *testing.T) {
		node := &testutil.FakeNode{
			PendingReceipts: 2,
			Receipt:         &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 21000},
		}
		s, sub := send(t, node)

		require.NoError(t, s.Confirm(context.Background(), sub))
		assert.Equal(t, StateConfirmed, sub.State)
		assert.Equal(t, sub.Hash, sub.Receipt.TxHash)
		assert.Equal(t, 3, node.ReceiptCalls)
	})

	t.Run("reverted", func(t *testing.T) {
		node := &testutil.FakeNode{Receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}
		s, sub := send(t, node)

		require.NoError(t, s.Confirm(context.Background(), sub))
		assert.Equal(t, StateReverted, sub.State)
	})

	t.Run("times out without resubmitting", func(t *testing.T) {
		node := &testutil.FakeNode{}
		s, sub := send(t, node)
		s.ConfirmTimeout = 30 * time.Millisecond

		require.NoError(t, s.Confirm(context.Background(), sub))
		assert.Equal(t, StateTimedOut, sub.State)
		assert.Nil(t, sub.Receipt)
		assert.Equal(t, 1, node.SentCount())
	})

	t.Run("poll errors keep waiting", func(t *testing.T) {
		node := &testutil.FakeNode{ReceiptErr: errors.New("connection reset")}
		s, sub := send(t, node)
		s.ConfirmTimeout = 30 * time.Millisecond

		require.NoError(t, s.Confirm(context.Background(), sub))
		assert.Equal(t, StateTimedOut, sub.State)
		assert.Greater(t, node.ReceiptCalls, 1)
	})

	t.Run("caller cancellation", func(t *testing.T) {
		node := &testutil.FakeNode{}
		s, sub := send(t, node)
		s.ConfirmTimeout = time.Minute

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		assert.ErrorIs(t, s.Confirm(ctx, sub), context.Canceled)
		assert.Equal(t, StateBroadcast, sub.State)
	})

	t.Run("only broadcast submissions", func(t *testing.T) {
		s := newTestSubmitter(t, &testutil.FakeNode{}, testSigner(t))
		assert.Error(t, s.Confirm(context.Background(), &Submission{State: StateSigned}))
	})
}
