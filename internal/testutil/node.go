package testutil

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Well-known development key (anvil/hardhat account #0). Never fund it.
const (
	DevPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	DevAddress    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// FakeNode is an in-memory chain.Node. Zero values answer successfully with
// zero amounts; set the *Err fields to inject failures.
type FakeNode struct {
	mu sync.Mutex

	Block      uint64
	BlockErr   error
	ID         *big.Int
	IDErr      error
	Balance    *big.Int
	BalanceErr error
	BaseFee    *big.Int
	HeaderErr  error
	Tip        *big.Int
	TipErr     error
	Gas        uint64
	GasErr     error
	Nonce      uint64
	NonceErr   error
	SendErr    error
	ReceiptErr error

	// PendingReceipts is the number of receipt polls answered with NotFound
	// before Receipt is returned. A nil Receipt is never found.
	PendingReceipts int
	Receipt         *types.Receipt

	Sent          []*types.Transaction
	EstimateCalls []ethereum.CallMsg
	NonceCalls    int
	BalanceCalls  int
	ReceiptCalls  int
	Closed        bool
}

func (f *FakeNode) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Block, f.BlockErr
}

func (f *FakeNode) ChainID(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.IDErr != nil {
		return nil, f.IDErr
	}
	if f.ID == nil {
		return big.NewInt(1), nil
	}
	return new(big.Int).Set(f.ID), nil
}

func (f *FakeNode) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BalanceCalls++
	if f.BalanceErr != nil {
		return nil, f.BalanceErr
	}
	return orZero(f.Balance), nil
}

func (f *FakeNode) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HeaderErr != nil {
		return nil, f.HeaderErr
	}
	header := &types.Header{Number: new(big.Int).SetUint64(f.Block)}
	if f.BaseFee != nil {
		header.BaseFee = new(big.Int).Set(f.BaseFee)
	}
	return header, nil
}

func (f *FakeNode) SuggestGasTipCap(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TipErr != nil {
		return nil, f.TipErr
	}
	return orZero(f.Tip), nil
}

func (f *FakeNode) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EstimateCalls = append(f.EstimateCalls, msg)
	return f.Gas, f.GasErr
}

func (f *FakeNode) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NonceCalls++
	return f.Nonce, f.NonceErr
}

func (f *FakeNode) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Sent = append(f.Sent, tx)
	return nil
}

func (f *FakeNode) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReceiptCalls++
	if f.ReceiptErr != nil {
		return nil, f.ReceiptErr
	}
	if f.Receipt == nil || f.ReceiptCalls <= f.PendingReceipts {
		return nil, ethereum.NotFound
	}
	r := *f.Receipt
	r.TxHash = hash
	return &r, nil
}

func (f *FakeNode) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
}

// SentCount returns how many transactions were broadcast.
func (f *FakeNode) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
