// Package engine drives one wallet through endpoint selection, amount
// negotiation, submission and confirmation, and runs wallets in sequence.
package engine

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/yolodolo42/gasbridge/internal/chain"
	"github.com/yolodolo42/gasbridge/internal/logging"
	"github.com/yolodolo42/gasbridge/internal/tx"
	"github.com/yolodolo42/gasbridge/internal/wallet"
)

// EndpointSelector picks a live RPC endpoint. *chain.Selector satisfies it.
type EndpointSelector interface {
	Select(ctx context.Context, candidates []string, expectedChainID *big.Int) (*chain.Endpoint, error)
}

// Engine processes single wallets. It holds no per-wallet state.
type Engine struct {
	Route      Route
	Candidates []string
	Selector   EndpointSelector
	Planner    *Planner

	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Logger         zerolog.Logger
}

// ProcessWallet runs the full pipeline for the wallet behind key and always
// returns an Outcome. The key is zeroed before it returns. A logger attached
// to ctx takes precedence over e.Logger.
func (e *Engine) ProcessWallet(ctx context.Context, index int, key *ecdsa.PrivateKey) Outcome {
	address := crypto.PubkeyToAddress(key.PublicKey)
	logger := logging.FromContext(ctx, e.Logger).With().
		Int("wallet", index).
		Str("address", address.Hex()).
		Logger()
	ctx = logger.WithContext(ctx)
	out := Outcome{Index: index, Address: address}

	out = e.process(ctx, logger, out, key)
	report(logger, e.Route, out)
	return out
}

func (e *Engine) process(ctx context.Context, logger zerolog.Logger, out Outcome, key *ecdsa.PrivateKey) Outcome {
	source := e.Route.Source

	endpoint, err := e.Selector.Select(ctx, e.Candidates, source.ChainIDBig())
	if err != nil {
		wallet.ZeroKey(key)
		return failure(out, err)
	}

	sess, err := wallet.Open(ctx, key, endpoint, source)
	if err != nil {
		endpoint.Close()
		return failure(out, err)
	}
	defer sess.Close()

	logger.Info().
		Str("rpc", chain.RedactURL(endpoint.URL)).
		Str("balance", chain.FormatBalance(sess.Balance, source.NativeDecimals())).
		Str("symbol", source.Symbol).
		Msg("Opened wallet session")

	planner := *e.Planner
	planner.Logger = logger
	plan, err := planner.Plan(ctx, e.Route, sess)
	if err != nil {
		return failure(out, err)
	}
	out.Amount = plan.Amount

	intent := plan.Intent(sess)
	policy := tx.Policy{}
	if planner.Strategy.Mode == ModeWithdrawMax {
		policy.MaxSpend = sess.Balance
	}
	if err := tx.Validate(intent, policy); err != nil {
		return failure(out, err)
	}

	unsigned, err := tx.BuildUnsignedTx(ctx, sess.Node(), intent)
	if err != nil {
		return failure(out, err)
	}

	submitter := tx.NewSubmitter(sess.Node(), sess.Signer(), sess.ChainID(), logger)
	if e.ConfirmTimeout > 0 {
		submitter.ConfirmTimeout = e.ConfirmTimeout
	}
	if e.PollInterval > 0 {
		submitter.PollInterval = e.PollInterval
	}

	sub, err := submitter.Send(ctx, unsigned)
	if err != nil {
		return failure(out, err)
	}
	out.TxHash = sub.Hash
	out.TxURL = source.TxURL(sub.Hash)
	logger.Info().Str("explorer", out.TxURL).Msg("Deposit sent")

	if err := submitter.Confirm(ctx, sub); err != nil {
		out.Status = StatusUnconfirmed
		out.Err = err
		return out
	}
	return fromSubmission(out, sub)
}

func report(logger zerolog.Logger, route Route, out Outcome) {
	var event *zerolog.Event
	switch out.Status {
	case StatusConfirmed:
		event = logger.Info()
	case StatusUnconfirmed, StatusSkipped:
		event = logger.Warn()
	default:
		event = logger.Error()
	}

	event = event.
		Str("status", string(out.Status)).
		Str("from_chain", route.Source.Name).
		Str("to_chain", route.Destination.Name)
	if out.Amount != nil {
		event = event.Str("amount", chain.FormatBalance(out.Amount, route.Source.NativeDecimals()))
	}
	if out.Sent() {
		event = event.Str("tx_hash", out.TxHash.Hex())
	}
	if out.Err != nil {
		event = event.Err(out.Err)
	}
	event.Msg("Wallet finished")
}
