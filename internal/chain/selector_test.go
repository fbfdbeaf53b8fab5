package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/gasbridge/internal/testutil"
)

type fakeDialer struct {
	nodes  map[string]*testutil.FakeNode
	dialed []string
}

func (d *fakeDialer) dial(_ context.Context, rawURL string) (Node, error) {
	d.dialed = append(d.dialed, rawURL)
	node, ok := d.nodes[rawURL]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return node, nil
}

func TestSelector_Select(t *testing.T) {
	t.Run("stops at first live endpoint", func(t *testing.T) {
		dead := &testutil.FakeNode{BlockErr: errors.New("503 service unavailable")}
		live := &testutil.FakeNode{Block: 100, ID: big.NewInt(8453)}
		spare := &testutil.FakeNode{Block: 101, ID: big.NewInt(8453)}
		d := &fakeDialer{nodes: map[string]*testutil.FakeNode{"A": dead, "B": live, "C": spare}}

		s := &Selector{Dial: d.dial, Logger: zerolog.Nop()}
		ep, err := s.Select(context.Background(), []string{"A", "B", "C"}, big.NewInt(8453))
		require.NoError(t, err)

		assert.Equal(t, "B", ep.URL)
		assert.Equal(t, uint64(100), ep.BlockNumber)
		assert.Equal(t, int64(8453), ep.ChainID.Int64())
		assert.Equal(t, []string{"A", "B"}, d.dialed)
		assert.True(t, dead.Closed, "failed candidate should be closed")
		assert.False(t, live.Closed)
	})

	t.Run("undialable endpoints are skipped", func(t *testing.T) {
		live := &testutil.FakeNode{Block: 7}
		d := &fakeDialer{nodes: map[string]*testutil.FakeNode{"B": live}}

		s := &Selector{Dial: d.dial, Logger: zerolog.Nop()}
		ep, err := s.Select(context.Background(), []string{"A", "B"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "B", ep.URL)
	})

	t.Run("chain id mismatch rejects endpoint", func(t *testing.T) {
		wrong := &testutil.FakeNode{Block: 1, ID: big.NewInt(1)}
		right := &testutil.FakeNode{Block: 1, ID: big.NewInt(10)}
		d := &fakeDialer{nodes: map[string]*testutil.FakeNode{"A": wrong, "B": right}}

		s := &Selector{Dial: d.dial, Logger: zerolog.Nop()}
		ep, err := s.Select(context.Background(), []string{"A", "B"}, big.NewInt(10))
		require.NoError(t, err)
		assert.Equal(t, "B", ep.URL)
		assert.True(t, wrong.Closed)
	})

	t.Run("no live endpoint", func(t *testing.T) {
		d := &fakeDialer{nodes: map[string]*testutil.FakeNode{
			"A": {BlockErr: errors.New("timeout")},
		}}

		s := &Selector{Dial: d.dial, Logger: zerolog.Nop()}
		ep, err := s.Select(context.Background(), []string{"A", "B"}, nil)
		assert.Nil(t, ep)
		assert.ErrorIs(t, err, ErrNoLiveEndpoint)
		assert.Equal(t, []string{"A", "B"}, d.dialed)
	})

	t.Run("empty candidate list", func(t *testing.T) {
		s := &Selector{Dial: (&fakeDialer{}).dial, Logger: zerolog.Nop()}
		_, err := s.Select(context.Background(), nil, nil)
		assert.ErrorIs(t, err, ErrNoLiveEndpoint)
	})

	t.Run("cancelled context stops probing", func(t *testing.T) {
		d := &fakeDialer{nodes: map[string]*testutil.FakeNode{}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		s := &Selector{Dial: d.dial, Logger: zerolog.Nop()}
		_, err := s.Select(ctx, []string{"A"}, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, d.dialed)
	})
	t.Run("endpoint credentials never reach logs or errors", func(t *testing.T) {
		const key = "9aa3d95b3bc440fa88ea12eaa4456161"
		rawURL := "https://mainnet.infura.io/v3/" + key
		transport := errors.New("connection reset")
		dial := func(_ context.Context, u string) (Node, error) {
			return nil, fmt.Errorf("Post %q: %w", u, transport)
		}

		var buf bytes.Buffer
		s := &Selector{Dial: dial, Logger: zerolog.New(&buf)}
		_, err := s.Select(context.Background(), []string{rawURL}, nil)
		require.ErrorIs(t, err, ErrNoLiveEndpoint)

		assert.NotContains(t, err.Error(), key)
		assert.NotContains(t, buf.String(), key)
		assert.Contains(t, buf.String(), "mainnet.infura.io/v3/REDACTED")
	})

	t.Run("logger attached to context is used", func(t *testing.T) {
		live := &testutil.FakeNode{Block: 3}
		d := &fakeDialer{nodes: map[string]*testutil.FakeNode{"B": live}}

		var buf bytes.Buffer
		ctx := zerolog.New(&buf).With().Str("run_id", "r-1").Logger().WithContext(context.Background())
		s := &Selector{Dial: d.dial, Logger: zerolog.Nop()}
		_, err := s.Select(ctx, []string{"B"}, nil)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"run_id":"r-1"`)
	})
}
