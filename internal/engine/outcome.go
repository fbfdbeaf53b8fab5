package engine

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/gasbridge/internal/tx"
)

// Status is the terminal result of one wallet.
type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusUnconfirmed Status = "sent_unconfirmed"
	StatusReverted    Status = "reverted"
	StatusSkipped     Status = "skipped"
	StatusFailed      Status = "failed"
)

// Outcome is what happened to one wallet. TxHash is set whenever the
// transaction was broadcast, including when confirmation was not observed.
type Outcome struct {
	Index   int
	Address common.Address
	Status  Status
	Amount  *big.Int
	TxHash  common.Hash
	TxURL   string
	Err     error
}

// Sent reports whether a transaction left the wallet.
func (o Outcome) Sent() bool {
	return o.TxHash != (common.Hash{})
}

func failure(o Outcome, err error) Outcome {
	o.Err = err
	o.Status = StatusFailed
	if errors.Is(err, ErrInsufficientAmount) {
		o.Status = StatusSkipped
	}
	return o
}

func fromSubmission(o Outcome, sub *tx.Submission) Outcome {
	o.TxHash = sub.Hash
	switch sub.State {
	case tx.StateConfirmed:
		o.Status = StatusConfirmed
	case tx.StateReverted:
		o.Status = StatusReverted
	default:
		o.Status = StatusUnconfirmed
	}
	return o
}

// Summary aggregates the outcomes of a run in processing order.
type Summary struct {
	RunID    string
	Outcomes []Outcome
}

// Count returns how many wallets ended in status.
func (s Summary) Count(status Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Sent returns the number of wallets that broadcast a transaction.
func (s Summary) Sent() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Sent() {
			n++
		}
	}
	return n
}

// Unconfirmed lists broadcast transactions without an observed receipt.
func (s Summary) Unconfirmed() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Status == StatusUnconfirmed {
			out = append(out, o)
		}
	}
	return out
}
