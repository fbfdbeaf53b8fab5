package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/yolodolo42/gasbridge/internal/bridge"
	"github.com/yolodolo42/gasbridge/internal/chain"
	"github.com/yolodolo42/gasbridge/internal/tx"
	"github.com/yolodolo42/gasbridge/internal/wallet"
)

var (
	ErrInsufficientAmount = errors.New("amount below chain minimum")
	ErrNegativeAmount     = errors.New("gas cost exceeds balance")
	ErrQuoteUnavailable   = errors.New("quote unavailable")
)

// InsufficientAmountError reports an amount under the source chain's
// minimum outbound transfer.
type InsufficientAmountError struct {
	Amount  *big.Int
	Minimum *big.Int
}

func (e *InsufficientAmountError) Error() string {
	return fmt.Sprintf("%s: %s < %s", ErrInsufficientAmount, e.Amount, e.Minimum)
}

func (e *InsufficientAmountError) Is(target error) bool { return target == ErrInsufficientAmount }

// Quoter fetches bridge quotes. *bridge.Client satisfies it.
type Quoter interface {
	FetchQuote(ctx context.Context, source, destination *bridge.Chain, amount *big.Int, from, to common.Address) (*bridge.Quote, error)
}

// Route is the configured source and destination pair.
type Route struct {
	Source      *bridge.Chain
	Destination *bridge.Chain
}

// Plan is the negotiated transfer for one wallet.
type Plan struct {
	Preliminary *big.Int
	Amount      *big.Int
	Fees        tx.FeeEstimate
	Quote       *bridge.Quote

	// ExceedsBalance flags a fixed-range amount that, with worst-case gas,
	// is more than the wallet holds. The plan is still sent.
	ExceedsBalance bool
}

// Intent turns the plan into a transaction intent for the session.
func (p *Plan) Intent(sess *wallet.Session) tx.Intent {
	deposit := p.Quote.Deposit
	return tx.Intent{
		ChainID: sess.ChainID(),
		From:    sess.Address(),
		To:      deposit.To,
		Value:   deposit.ValueWei(),
		Data:    deposit.Data,
		Fees:    p.Fees,
	}
}

// Planner runs the two-phase quote and gas negotiation.
type Planner struct {
	Quotes   Quoter
	Strategy AmountStrategy
	Logger   zerolog.Logger
}

// Plan negotiates the amount for sess. It returns ErrInsufficientAmount when
// the wallet should be skipped, and never requests a final quote for an
// amount below the minimum.
func (p *Planner) Plan(ctx context.Context, route Route, sess *wallet.Session) (*Plan, error) {
	logger := p.Logger
	source := route.Source
	minimum := source.Minimum()
	decimals := source.NativeDecimals()

	if sess.Balance.Cmp(minimum) < 0 {
		return nil, &InsufficientAmountError{Amount: new(big.Int).Set(sess.Balance), Minimum: minimum}
	}

	preliminary, err := p.Strategy.Preliminary(sess.Balance, decimals)
	if err != nil {
		return nil, err
	}
	if p.Strategy.Mode == ModeFixedRange && preliminary.Cmp(minimum) < 0 {
		return nil, &InsufficientAmountError{Amount: preliminary, Minimum: minimum}
	}

	logger.Debug().
		Str("mode", p.Strategy.Mode.String()).
		Str("preliminary", chain.FormatBalance(preliminary, decimals)).
		Msg("Requesting preliminary quote")

	quote, err := p.quote(ctx, route, sess, preliminary)
	if err != nil {
		return nil, err
	}

	deposit := quote.Deposit
	fees, err := tx.EstimateFees(ctx, sess.Node(), tx.Payload{
		From:  sess.Address(),
		To:    deposit.To,
		Value: deposit.ValueWei(),
		Data:  deposit.Data,
	})
	if err != nil {
		return nil, err
	}

	amount := p.Strategy.Final(preliminary, sess.Balance, fees.MaxGasCost)
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: balance %s, max gas cost %s", ErrNegativeAmount, sess.Balance, fees.MaxGasCost)
	}
	if amount.Cmp(minimum) < 0 {
		return nil, &InsufficientAmountError{Amount: amount, Minimum: minimum}
	}

	plan := &Plan{Preliminary: preliminary, Amount: amount, Fees: fees}
	if p.Strategy.Mode == ModeFixedRange {
		total := new(big.Int).Add(amount, fees.MaxGasCost)
		if total.Cmp(sess.Balance) > 0 {
			plan.ExceedsBalance = true
			logger.Warn().
				Str("amount", chain.FormatBalance(amount, decimals)).
				Str("max_gas_cost", chain.FormatBalance(fees.MaxGasCost, decimals)).
				Str("balance", chain.FormatBalance(sess.Balance, decimals)).
				Msg("Fixed amount plus gas exceeds balance, broadcast may be rejected")
		}
	}

	final, err := p.quote(ctx, route, sess, amount)
	if err != nil {
		return nil, err
	}
	plan.Quote = final

	logger.Info().
		Str("amount", chain.FormatBalance(amount, decimals)).
		Str("symbol", source.Symbol).
		Str("max_gas_cost", fees.MaxGasCost.String()).
		Uint64("gas_limit", fees.GasLimit).
		Msg("Received final quote")

	return plan, nil
}

func (p *Planner) quote(ctx context.Context, route Route, sess *wallet.Session, amount *big.Int) (*bridge.Quote, error) {
	addr := sess.Address()
	quote, err := p.Quotes.FetchQuote(ctx, route.Source, route.Destination, amount, addr, addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	if quote == nil || quote.Deposit == nil {
		return nil, ErrQuoteUnavailable
	}
	return quote, nil
}
