package tx

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/yolodolo42/gasbridge/internal/chain"
	"github.com/yolodolo42/gasbridge/internal/wallet"
)

// State is the lifecycle position of a submitted deposit.
type State string

const (
	StateBuilt     State = "built"
	StateSigned    State = "signed"
	StateBroadcast State = "broadcast"
	StateConfirmed State = "confirmed"
	StateReverted  State = "reverted"
	StateTimedOut  State = "timed_out"
)

const (
	DefaultConfirmTimeout = 3 * time.Minute
	DefaultPollInterval   = 2 * time.Second
)

var (
	ErrSigning    = errors.New("signing failed")
	ErrSubmission = errors.New("broadcast failed")
)

// Submission tracks one transaction. Hash is set once the node accepted it.
type Submission struct {
	State   State
	Hash    common.Hash
	Tx      *types.Transaction
	Receipt *types.Receipt
}

// Submitter signs, broadcasts and confirms transactions. It never resubmits.
type Submitter struct {
	Node           chain.Node
	Signer         wallet.Signer
	ChainID        *big.Int
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Logger         zerolog.Logger
}

// NewSubmitter returns a Submitter with the default confirmation window.
func NewSubmitter(node chain.Node, signer wallet.Signer, chainID *big.Int, logger zerolog.Logger) *Submitter {
	return &Submitter{
		Node:           node,
		Signer:         signer,
		ChainID:        chainID,
		ConfirmTimeout: DefaultConfirmTimeout,
		PollInterval:   DefaultPollInterval,
		Logger:         logger,
	}
}

// Send signs and broadcasts unsigned. On error the returned Submission shows
// how far the transaction got.
func (s *Submitter) Send(ctx context.Context, unsigned *types.Transaction) (*Submission, error) {
	sub := &Submission{State: StateBuilt, Tx: unsigned}

	signed, err := s.Signer.SignTransaction(unsigned, s.ChainID)
	if err != nil {
		return sub, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	sub.State = StateSigned
	sub.Tx = signed

	if err := s.Node.SendTransaction(ctx, signed); err != nil {
		return sub, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	sub.State = StateBroadcast
	sub.Hash = signed.Hash()

	s.Logger.Info().
		Str("tx_hash", sub.Hash.Hex()).
		Uint64("nonce", signed.Nonce()).
		Uint64("gas_limit", signed.Gas()).
		Msg("Transaction broadcast")

	return sub, nil
}

// Confirm polls for the receipt of a broadcast submission until it is mined
// or the confirmation window closes. A missed window is not an error: the
// submission ends in StateTimedOut and may still land later.
func (s *Submitter) Confirm(ctx context.Context, sub *Submission) error {
	if sub.State != StateBroadcast {
		return fmt.Errorf("cannot confirm a %s transaction", sub.State)
	}

	timeout := s.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sub.State = StateTimedOut
			s.Logger.Warn().
				Str("tx_hash", sub.Hash.Hex()).
				Dur("waited", timeout).
				Msg("No receipt within confirmation window")
			return nil
		case <-ticker.C:
			receipt, err := s.Node.TransactionReceipt(waitCtx, sub.Hash)
			if err != nil {
				if !errors.Is(err, ethereum.NotFound) {
					s.Logger.Debug().Err(err).Str("tx_hash", sub.Hash.Hex()).Msg("Receipt poll failed")
				}
				continue
			}
			sub.Receipt = receipt
			if receipt.Status == types.ReceiptStatusSuccessful {
				sub.State = StateConfirmed
			} else {
				sub.State = StateReverted
			}
			s.Logger.Info().
				Str("tx_hash", sub.Hash.Hex()).
				Str("state", string(sub.State)).
				Uint64("gas_used", receipt.GasUsed).
				Msg("Received receipt")
			return nil
		}
	}
}
