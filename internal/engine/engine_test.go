package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/gasbridge/internal/chain"
	"github.com/yolodolo42/gasbridge/internal/testutil"
	"github.com/yolodolo42/gasbridge/internal/tx"
)

func testEngine(node *testutil.FakeNode, dialErr error, quotes Quoter) *Engine {
	return &Engine{
		Route:          testRoute(5_000_000),
		Candidates:     []string{"http://rpc-a", "http://rpc-b"},
		Selector:       fakeSelector(node, dialErr),
		Planner:        &Planner{Quotes: quotes, Strategy: WithdrawMax()},
		ConfirmTimeout: 200 * time.Millisecond,
		PollInterval:   time.Millisecond,
		Logger:         zerolog.Nop(),
	}
}

func TestProcessWallet(t *testing.T) {
	t.Run("confirmed deposit", func(t *testing.T) {
		node := scenarioNode()
		node.Nonce = 4
		engine := testEngine(node, nil, &fakeQuoter{})
		key := devKey(t)
		words := key.D.Bits()

		out := engine.ProcessWallet(context.Background(), 0, key)
		require.NoError(t, out.Err)
		assert.Equal(t, StatusConfirmed, out.Status)
		assert.Equal(t, testutil.DevAddress, out.Address.Hex())
		assert.Equal(t, "645625000000000", out.Amount.String())

		require.Equal(t, 1, node.SentCount())
		sent := node.Sent[0]
		assert.Equal(t, sent.Hash(), out.TxHash)
		assert.Equal(t, "https://optimistic.etherscan.io/tx/"+sent.Hash().Hex(), out.TxURL)
		assert.Equal(t, uint64(4), sent.Nonce())
		assert.Equal(t, depositContract, *sent.To())
		assert.Equal(t, "645625000000000", sent.Value().String())
		assert.Equal(t, uint64(26250), sent.Gas())
		assert.Equal(t, "13500000000", sent.GasFeeCap().String())
		assert.Equal(t, "10", sent.ChainId().String())

		assert.True(t, node.Closed)
		assert.Equal(t, 0, key.D.Sign())
		for _, w := range words[:cap(words)] {
			assert.Zero(t, w)
		}
	})

	t.Run("unconfirmed deposit keeps its hash", func(t *testing.T) {
		node := scenarioNode()
		node.Receipt = nil
		engine := testEngine(node, nil, &fakeQuoter{})
		engine.ConfirmTimeout = 20 * time.Millisecond

		out := engine.ProcessWallet(context.Background(), 1, devKey(t))
		assert.Equal(t, StatusUnconfirmed, out.Status)
		assert.True(t, out.Sent())
		assert.Equal(t, node.Sent[0].Hash(), out.TxHash)
		assert.Equal(t, 1, node.SentCount())
	})

	t.Run("no live endpoint", func(t *testing.T) {
		quotes := &fakeQuoter{}
		engine := testEngine(nil, errors.New("connection refused"), quotes)
		key := devKey(t)

		out := engine.ProcessWallet(context.Background(), 2, key)
		assert.Equal(t, StatusFailed, out.Status)
		assert.ErrorIs(t, out.Err, chain.ErrNoLiveEndpoint)
		assert.Empty(t, quotes.requested())
		assert.Equal(t, 0, key.D.Sign())
	})

	t.Run("low balance is skipped", func(t *testing.T) {
		node := scenarioNode()
		node.Balance.SetInt64(1000)
		engine := testEngine(node, nil, &fakeQuoter{})

		out := engine.ProcessWallet(context.Background(), 3, devKey(t))
		assert.Equal(t, StatusSkipped, out.Status)
		assert.ErrorIs(t, out.Err, ErrInsufficientAmount)
		assert.Equal(t, 0, node.SentCount())
	})

	t.Run("rejected broadcast fails without retry", func(t *testing.T) {
		node := scenarioNode()
		node.SendErr = errors.New("nonce too low")
		engine := testEngine(node, nil, &fakeQuoter{})

		out := engine.ProcessWallet(context.Background(), 4, devKey(t))
		assert.Equal(t, StatusFailed, out.Status)
		assert.ErrorIs(t, out.Err, tx.ErrSubmission)
		assert.False(t, out.Sent())
		assert.Equal(t, 1, node.NonceCalls)
	})

	t.Run("reverted deposit", func(t *testing.T) {
		node := scenarioNode()
		node.Receipt.Status = 0
		engine := testEngine(node, nil, &fakeQuoter{})

		out := engine.ProcessWallet(context.Background(), 5, devKey(t))
		assert.Equal(t, StatusReverted, out.Status)
		assert.True(t, out.Sent())
	})
}
