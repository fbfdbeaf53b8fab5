package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/yolodolo42/gasbridge/internal/logging"
)

// ErrNoLiveEndpoint is returned when every candidate failed its probe.
var ErrNoLiveEndpoint = errors.New("no live RPC endpoint")

const defaultProbeTimeout = 10 * time.Second

// Endpoint is a node that answered its liveness probe.
type Endpoint struct {
	URL         string
	Node        Node
	ChainID     *big.Int
	BlockNumber uint64
}

// Close releases the underlying connection.
func (e *Endpoint) Close() {
	if e != nil && e.Node != nil {
		e.Node.Close()
	}
}

// Selector picks the first responsive endpoint from an ordered candidate list.
type Selector struct {
	Dial         Dialer
	ProbeTimeout time.Duration
	Logger       zerolog.Logger
}

// NewSelector creates a selector using ethclient.
func NewSelector(probeTimeout time.Duration, logger zerolog.Logger) *Selector {
	return &Selector{
		Dial:         DialEthclient,
		ProbeTimeout: probeTimeout,
		Logger:       logger,
	}
}

// Select dials candidates in order and returns the first whose block height
// can be read. When expectedChainID is non-nil, endpoints reporting a
// different chain id are rejected. Candidates after the first live one are
// never contacted. A logger attached to ctx is used in place of s.Logger.
func (s *Selector) Select(ctx context.Context, candidates []string, expectedChainID *big.Int) (*Endpoint, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrNoLiveEndpoint)
	}

	dial := s.Dial
	if dial == nil {
		dial = DialEthclient
	}

	logger := logging.FromContext(ctx, s.Logger)
	var lastErr error
	for _, rawURL := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		endpoint, err := s.probe(ctx, dial, rawURL, expectedChainID)
		if err != nil {
			err = RedactError(err, rawURL)
			lastErr = err
			logger.Warn().
				Err(err).
				Str("url", RedactURL(rawURL)).
				Msg("RPC endpoint failed liveness probe")
			continue
		}

		logger.Info().
			Str("url", RedactURL(rawURL)).
			Uint64("block", endpoint.BlockNumber).
			Msg("Selected RPC endpoint")
		return endpoint, nil
	}

	return nil, fmt.Errorf("%w: tried %d candidates, last error: %v", ErrNoLiveEndpoint, len(candidates), lastErr)
}

func (s *Selector) probe(ctx context.Context, dial Dialer, rawURL string, expectedChainID *big.Int) (*Endpoint, error) {
	timeout := s.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	node, err := dial(probeCtx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	height, err := node.BlockNumber(probeCtx)
	if err != nil {
		node.Close()
		return nil, fmt.Errorf("block number: %w", err)
	}

	chainID, err := node.ChainID(probeCtx)
	if err != nil {
		node.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}

	if expectedChainID != nil && chainID.Cmp(expectedChainID) != 0 {
		node.Close()
		return nil, fmt.Errorf("chain ID mismatch: expected %s, got %s", expectedChainID.String(), chainID.String())
	}

	return &Endpoint{
		URL:         rawURL,
		Node:        node,
		ChainID:     chainID,
		BlockNumber: height,
	}, nil
}
