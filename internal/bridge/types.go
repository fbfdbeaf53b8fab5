package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultDecimals is used when the directory does not report a decimal count.
const DefaultDecimals = 18

// BaseUnits is an integer amount in a chain's smallest unit. The bridge API
// reports these either as JSON strings or as bare numbers.
type BaseUnits struct {
	big.Int
}

// UnmarshalJSON accepts "123", 123 and "0x7b".
func (b *BaseUnits) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || len(data) == 0 {
		b.SetInt64(0)
		return nil
	}

	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		b.SetInt64(0)
		return nil
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if len(s) == 2 {
			b.SetInt64(0)
			return nil
		}
		if _, ok := b.SetString(s[2:], 16); !ok {
			return fmt.Errorf("invalid hex base units %q", s)
		}
		return nil
	}

	// Some directories emit integral values in exponent form (e.g. 1e+16).
	if _, ok := b.SetString(s, 10); ok {
		return nil
	}
	f, ok := new(big.Float).SetPrec(256).SetString(s)
	if !ok {
		return fmt.Errorf("invalid base units %q", s)
	}
	v, acc := f.Int(nil)
	if acc != big.Exact {
		return fmt.Errorf("base units %q are not integral", s)
	}
	b.Set(v)
	return nil
}

// BigInt returns a copy of the amount.
func (b *BaseUnits) BigInt() *big.Int {
	return new(big.Int).Set(&b.Int)
}

// Chain describes one network supported by the bridge. It is read-only once
// decoded from the directory.
type Chain struct {
	Name              string    `json:"name"`
	ChainID           uint64    `json:"chain"`
	Short             int       `json:"short"`
	Symbol            string    `json:"symbol"`
	Decimals          int       `json:"decimals"`
	Price             float64   `json:"price"`
	MinOutboundNative BaseUnits `json:"minOutboundNative"`
	MaxOutboundNative BaseUnits `json:"maxOutboundNative"`
	Explorer          string    `json:"explorer"`
	Mainnet           bool      `json:"mainnet"`
}

// NativeDecimals returns the decimal count of the native currency.
func (c *Chain) NativeDecimals() int {
	if c.Decimals <= 0 {
		return DefaultDecimals
	}
	return c.Decimals
}

// Minimum returns the minimum outbound transfer amount in base units.
func (c *Chain) Minimum() *big.Int {
	return c.MinOutboundNative.BigInt()
}

// ChainIDBig returns the numeric chain id for signing.
func (c *Chain) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(c.ChainID)
}

// TxURL links a transaction hash on the chain's block explorer.
func (c *Chain) TxURL(hash common.Hash) string {
	if c.Explorer == "" {
		return hash.Hex()
	}
	return strings.TrimRight(c.Explorer, "/") + "/tx/" + hash.Hex()
}

// Directory is the bridge's list of supported chains.
type Directory struct {
	Chains []Chain `json:"chains"`
}

// Find returns the chain whose name matches exactly.
func (d *Directory) Find(name string) (*Chain, bool) {
	for i := range d.Chains {
		if d.Chains[i].Name == name {
			return &d.Chains[i], true
		}
	}
	return nil, false
}

// Names returns every chain name sorted case-insensitively.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.Chains))
	for _, c := range d.Chains {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// UnknownChainError lists the names that did not resolve.
type UnknownChainError struct {
	Names []string
}

func (e *UnknownChainError) Error() string {
	return fmt.Sprintf("unknown bridge chain(s): %s", strings.Join(e.Names, ", "))
}

// Resolve looks up the source and destination chains by name.
func (d *Directory) Resolve(source, destination string) (*Chain, *Chain, error) {
	src, srcOK := d.Find(source)
	dst, dstOK := d.Find(destination)

	var missing []string
	if !srcOK {
		missing = append(missing, source)
	}
	if !dstOK {
		missing = append(missing, destination)
	}
	if len(missing) > 0 {
		return nil, nil, &UnknownChainError{Names: missing}
	}
	return src, dst, nil
}

// DepositTx is the transaction template the bridge asks the sender to submit.
type DepositTx struct {
	To    common.Address `json:"to"`
	Value BaseUnits      `json:"value"`
	Data  hexutil.Bytes  `json:"data"`
}

// ValueWei returns the template value, zero when absent.
func (d *DepositTx) ValueWei() *big.Int {
	return d.Value.BigInt()
}

// QuoteLeg is the bridge's estimate for one destination.
type QuoteLeg struct {
	Chain    uint64    `json:"chain"`
	Expected BaseUnits `json:"expected"`
	Gas      BaseUnits `json:"gas"`
	Speed    float64   `json:"speed"`
	USD      float64   `json:"usd"`
}

// Quote is the bridge's answer for a (source amount, destination) pair.
type Quote struct {
	Deposit *DepositTx `json:"contractDepositTxn"`
	Quotes  []QuoteLeg `json:"quotes"`

	// Amount is the source amount the quote was requested for.
	Amount *big.Int `json:"-"`
}

// Validate rejects quotes without a usable deposit template.
func (q *Quote) Validate() error {
	if q.Deposit == nil {
		return fmt.Errorf("quote has no deposit transaction")
	}
	if q.Deposit.To == (common.Address{}) {
		return fmt.Errorf("quote deposit transaction has no destination")
	}
	return nil
}
