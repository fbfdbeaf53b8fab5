package wallet

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrSignerLocked = errors.New("signer is locked")
	ErrInvalidKey   = errors.New("invalid private key")
)

// Signer signs transactions for a single address.
type Signer interface {
	// Address returns the Ethereum address of the signer
	Address() common.Address

	// SignTransaction signs a transaction with the given chain ID
	SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeySigner signs with an in-memory private key.
type KeySigner struct {
	// mu prevents signing from racing with Lock, which zeros the key.
	mu      sync.RWMutex
	address common.Address
	key     *ecdsa.PrivateKey // nil when locked
}

// NewKeySigner takes ownership of key; Lock zeros it.
func NewKeySigner(key *ecdsa.PrivateKey) (*KeySigner, error) {
	if key == nil || key.D == nil || key.D.Sign() == 0 {
		return nil, ErrInvalidKey
	}
	return &KeySigner{
		address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}, nil
}

// Address returns the address of the signer
func (s *KeySigner) Address() common.Address {
	return s.address
}

// SignTransaction signs a transaction
func (s *KeySigner) SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.key == nil {
		return nil, ErrSignerLocked
	}

	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// Lock zeros the private key. Safe to call multiple times. After Lock, all
// signing operations return ErrSignerLocked.
func (s *KeySigner) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		ZeroKey(s.key)
		s.key = nil
	}
}

// ZeroKey overwrites the private scalar of key, including the unused capacity
// of its backing words.
func ZeroKey(key *ecdsa.PrivateKey) {
	if key == nil || key.D == nil {
		return
	}
	words := key.D.Bits()
	clear(words[:cap(words)])
	key.D.SetInt64(0)
}
