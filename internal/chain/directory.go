// Package chain selects and talks to EVM RPC endpoints.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yolodolo42/gasbridge/internal/fetch"
)

// DefaultChainlistURL serves the public RPC directory.
const DefaultChainlistURL = "https://chainlist.org/rpcs.json"

// ErrUnknownChain is returned when the RPC directory has no entry for a chain id.
var ErrUnknownChain = errors.New("chain not found in RPC directory")

// RPCEntry is one endpoint of a chain. Chainlist emits either a bare URL
// string or an object with tracking metadata.
type RPCEntry struct {
	URL          string `json:"url"`
	Tracking     string `json:"tracking,omitempty"`
	IsOpenSource bool   `json:"isOpenSource,omitempty"`
}

// UnmarshalJSON accepts both entry forms.
func (e *RPCEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &e.URL)
	}

	type plain RPCEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = RPCEntry(p)
	return nil
}

// ChainRPCs is a chain entry of the RPC directory.
type ChainRPCs struct {
	Name    string     `json:"name"`
	ChainID uint64     `json:"chainId"`
	RPC     []RPCEntry `json:"rpc"`
}

// RPCDirectory maps numeric chain ids to ordered endpoint lists.
type RPCDirectory struct {
	chains []ChainRPCs
}

// ParseRPCDirectory decodes a chainlist rpcs.json payload.
func ParseRPCDirectory(data []byte) (*RPCDirectory, error) {
	var chains []ChainRPCs
	if err := json.Unmarshal(data, &chains); err != nil {
		return nil, fmt.Errorf("decode RPC directory: %w", err)
	}
	return &RPCDirectory{chains: chains}, nil
}

// Len returns the number of chains in the directory.
func (d *RPCDirectory) Len() int {
	return len(d.chains)
}

// Endpoints returns the usable endpoint URLs for chainID in directory order.
// URLs needing an API key placeholder or using a non-HTTP scheme are dropped.
func (d *RPCDirectory) Endpoints(chainID uint64) ([]string, error) {
	for _, c := range d.chains {
		if c.ChainID != chainID {
			continue
		}
		urls := make([]string, 0, len(c.RPC))
		for _, entry := range c.RPC {
			if usableEndpoint(entry.URL) {
				urls = append(urls, entry.URL)
			}
		}
		return urls, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
}

// Candidates puts overrides first and removes duplicates, keeping order.
func Candidates(overrides, discovered []string) []string {
	seen := make(map[string]struct{}, len(overrides)+len(discovered))
	out := make([]string, 0, len(overrides)+len(discovered))
	for _, list := range [][]string{overrides, discovered} {
		for _, u := range list {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

func usableEndpoint(raw string) bool {
	if raw == "" || strings.Contains(raw, "${") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DirectoryCache keeps a local copy of the RPC directory and refreshes it
// once it is older than TTL.
type DirectoryCache struct {
	URL     string
	Path    string
	TTL     time.Duration
	Fetcher *fetch.Client
	Logger  zerolog.Logger

	now func() time.Time
}

// Load returns the directory from the cache file when fresh, downloading it
// otherwise. A failed download falls back to a stale file. A cache file that
// does not decode is removed.
func (c *DirectoryCache) Load(ctx context.Context) (*RPCDirectory, error) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}

	fresh := false
	info, statErr := os.Stat(c.Path)
	switch {
	case statErr == nil && now().Sub(info.ModTime()) < c.TTL:
		c.Logger.Info().Str("path", c.Path).Msg("Using cached RPC directory")
		fresh = true
	case statErr == nil:
		c.Logger.Info().Str("path", c.Path).Msg("Cached RPC directory is stale, refreshing")
	}

	if !fresh {
		if err := c.download(ctx); err != nil {
			if statErr != nil {
				return nil, fmt.Errorf("download RPC directory: %w", err)
			}
			c.Logger.Warn().Err(err).Msg("Failed to refresh RPC directory, using stale cache")
		}
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("read RPC directory cache: %w", err)
	}

	dir, err := ParseRPCDirectory(data)
	if err != nil {
		_ = os.Remove(c.Path)
		return nil, fmt.Errorf("cache file %s is corrupt and was removed: %w", c.Path, err)
	}
	return dir, nil
}

func (c *DirectoryCache) download(ctx context.Context) error {
	target := c.URL
	if target == "" {
		target = DefaultChainlistURL
	}

	c.Logger.Info().Str("url", target).Msg("Downloading RPC directory")
	data, err := c.Fetcher.Get(ctx, target, nil)
	if err != nil {
		return err
	}
	if _, err := ParseRPCDirectory(data); err != nil {
		return fmt.Errorf("%w: %v", fetch.ErrPayload, err)
	}

	if dir := filepath.Dir(c.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}

	tmp := c.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write RPC directory cache: %w", err)
	}
	if err := os.Rename(tmp, c.Path); err != nil {
		return fmt.Errorf("replace RPC directory cache: %w", err)
	}

	c.Logger.Info().Str("path", c.Path).Msg("Saved RPC directory cache")
	return nil
}
