// Package bridge talks to the gas.zip style bridge API: the supported-chain
// directory and per-amount deposit quotes.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/yolodolo42/gasbridge/internal/fetch"
	"github.com/yolodolo42/gasbridge/internal/logging"
)

// DefaultBaseURL is the public bridge API root.
const DefaultBaseURL = "https://backend.gas.zip/v2"

// ErrInvalidQuote is returned for quotes without a usable deposit template.
var ErrInvalidQuote = errors.New("invalid quote")

// Client fetches the chain directory and quotes.
type Client struct {
	baseURL string
	fetcher *fetch.Client
	logger  zerolog.Logger
}

// NewClient creates a bridge client rooted at baseURL.
func NewClient(baseURL string, fetcher *fetch.Client, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		logger:  logger,
	}
}

// FetchChainDirectory returns every chain the bridge supports.
func (c *Client) FetchChainDirectory(ctx context.Context) (*Directory, error) {
	var dir Directory
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/chains", nil, &dir); err != nil {
		return nil, fmt.Errorf("fetch chain directory: %w", err)
	}
	if len(dir.Chains) == 0 {
		return nil, fmt.Errorf("fetch chain directory: %w", fetch.ErrPayload)
	}

	c.logger.Debug().Int("chains", len(dir.Chains)).Msg("Loaded bridge chain directory")
	return &dir, nil
}

// QuoteURL builds the quote endpoint for moving amount from source to destination.
func (c *Client) QuoteURL(source, destination *Chain, amount *big.Int) string {
	return fmt.Sprintf("%s/quotes/%s/%s/%s",
		c.baseURL,
		strconv.FormatUint(source.ChainID, 10),
		amount.String(),
		strconv.FormatUint(destination.ChainID, 10),
	)
}

// FetchQuote requests a deposit quote. A nil quote is always accompanied by a
// non-nil error; callers skip the wallet rather than abort the run.
func (c *Client) FetchQuote(ctx context.Context, source, destination *Chain, amount *big.Int, from, to common.Address) (*Quote, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount must be non-negative", ErrInvalidQuote)
	}

	query := url.Values{}
	query.Set("from", from.Hex())
	query.Set("to", to.Hex())

	logger := logging.FromContext(ctx, c.logger)

	var quote Quote
	if err := c.fetcher.GetJSON(ctx, c.QuoteURL(source, destination, amount), query, &quote); err != nil {
		logger.Error().
			Err(err).
			Str("source", source.Name).
			Str("destination", destination.Name).
			Str("amount", amount.String()).
			Msg("Failed to fetch quote")
		return nil, fmt.Errorf("fetch quote: %w", err)
	}

	if err := quote.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuote, err)
	}
	quote.Amount = new(big.Int).Set(amount)

	logger.Debug().
		Str("amount", amount.String()).
		Str("deposit_to", quote.Deposit.To.Hex()).
		Str("deposit_value", quote.Deposit.ValueWei().String()).
		Msg("Received quote")

	return &quote, nil
}
