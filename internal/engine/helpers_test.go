package engine

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/gasbridge/internal/bridge"
	"github.com/yolodolo42/gasbridge/internal/chain"
	"github.com/yolodolo42/gasbridge/internal/testutil"
	"github.com/yolodolo42/gasbridge/internal/wallet"
)

var depositContract = common.HexToAddress("0x391E7C679d29bD940d63be94AD22A25d25b5A604")

type fakeQuoter struct {
	mu      sync.Mutex
	amounts []*big.Int
	// failAt makes the n-th call (1-based) fail.
	failAt int
}

func (f *fakeQuoter) FetchQuote(_ context.Context, _, _ *bridge.Chain, amount *big.Int, _, _ common.Address) (*bridge.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.amounts = append(f.amounts, new(big.Int).Set(amount))
	if f.failAt == len(f.amounts) {
		return nil, errors.New("bridge unavailable")
	}
	q := &bridge.Quote{
		Deposit: &bridge.DepositTx{To: depositContract, Data: hexutil.Bytes{0x01, 0x0a}},
		Amount:  new(big.Int).Set(amount),
	}
	q.Deposit.Value.Set(amount)
	return q, nil
}

func (f *fakeQuoter) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.amounts))
	for i, a := range f.amounts {
		out[i] = a.String()
	}
	return out
}

func testRoute(minimum int64) Route {
	src := &bridge.Chain{Name: "Optimism", ChainID: 10, Symbol: "ETH", Decimals: 18, Explorer: "https://optimistic.etherscan.io/"}
	src.MinOutboundNative.SetInt64(minimum)
	dst := &bridge.Chain{Name: "Arbitrum", ChainID: 42161, Symbol: "ETH", Decimals: 18}
	return Route{Source: src, Destination: dst}
}

// scenarioNode answers with balance 1e15, gas 21000, base fee 10 gwei and a
// 1 gwei tip.
func scenarioNode() *testutil.FakeNode {
	return &testutil.FakeNode{
		ID:      big.NewInt(10),
		Balance: big.NewInt(1_000_000_000_000_000),
		Gas:     21000,
		BaseFee: big.NewInt(10_000_000_000),
		Tip:     big.NewInt(1_000_000_000),
		Receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 21000},
	}
}

func devKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.HexToECDSA(testutil.DevPrivateKey)
	require.NoError(t, err)
	return key
}

func openSession(t *testing.T, node *testutil.FakeNode, route Route) *wallet.Session {
	t.Helper()
	endpoint := &chain.Endpoint{URL: "http://fake", Node: node, ChainID: big.NewInt(10)}
	sess, err := wallet.Open(context.Background(), devKey(t), endpoint, route.Source)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

func fakeSelector(node chain.Node, dialErr error) *chain.Selector {
	return &chain.Selector{
		Dial: func(context.Context, string) (chain.Node, error) {
			if dialErr != nil {
				return nil, dialErr
			}
			return node, nil
		},
		ProbeTimeout: time.Second,
		Logger:       zerolog.Nop(),
	}
}
