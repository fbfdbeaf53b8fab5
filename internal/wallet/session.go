// Package wallet holds per-wallet key material and the state built around it.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/gasbridge/internal/bridge"
	"github.com/yolodolo42/gasbridge/internal/chain"
)

// ErrNoEndpoint is returned when a session is opened without a live endpoint.
var ErrNoEndpoint = errors.New("session requires a live endpoint")

// Session is the working state of one wallet for one run: its signer, the
// endpoint it talks to, the source chain and the balance read at open time.
type Session struct {
	Chain    *bridge.Chain
	Endpoint *chain.Endpoint
	Balance  *big.Int

	signer *KeySigner
}

// Open binds key to endpoint and reads the wallet balance. The session owns
// key from here on, including on error.
func Open(ctx context.Context, key *ecdsa.PrivateKey, endpoint *chain.Endpoint, source *bridge.Chain) (*Session, error) {
	signer, err := NewKeySigner(key)
	if err != nil {
		return nil, err
	}

	if endpoint == nil || endpoint.Node == nil {
		signer.Lock()
		return nil, ErrNoEndpoint
	}

	balance, err := endpoint.Node.BalanceAt(ctx, signer.Address(), nil)
	if err != nil {
		signer.Lock()
		return nil, fmt.Errorf("read balance: %w", err)
	}

	return &Session{
		Chain:    source,
		Endpoint: endpoint,
		Balance:  balance,
		signer:   signer,
	}, nil
}

// Address returns the wallet address.
func (s *Session) Address() common.Address {
	return s.signer.Address()
}

// Node returns the live RPC node.
func (s *Session) Node() chain.Node {
	return s.Endpoint.Node
}

// Signer returns the signer bound to this session.
func (s *Session) Signer() Signer {
	return s.signer
}

// ChainID is the id reported by the endpoint, used for signing.
func (s *Session) ChainID() *big.Int {
	if s.Endpoint.ChainID != nil {
		return new(big.Int).Set(s.Endpoint.ChainID)
	}
	return s.Chain.ChainIDBig()
}

// Close zeros the private key and closes the endpoint.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.signer.Lock()
	s.Endpoint.Close()
}
