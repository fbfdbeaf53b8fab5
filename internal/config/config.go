// Package config loads and validates run settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/yolodolo42/gasbridge/internal/bridge"
	"github.com/yolodolo42/gasbridge/internal/chain"
	"github.com/yolodolo42/gasbridge/internal/engine"
	"github.com/yolodolo42/gasbridge/internal/wallet"
)

// ErrConfiguration marks settings that make the whole run impossible.
var ErrConfiguration = errors.New("configuration error")

// EnvPrefix prefixes every environment override, e.g. GASBRIDGE_INPUT_CHAIN.
const EnvPrefix = "GASBRIDGE"

// Keys
const (
	KeyInputChain       = "input_chain"
	KeyOutputChain      = "output_chain"
	KeyTimeout          = "timeout"
	KeyWithdrawMax      = "withdraw_max"
	KeyAmount           = "amount"
	KeyPrivateKeys      = "private_keys"
	KeyKeystoreDir      = "keystore_dir"
	KeyKeystorePassword = "keystore_password"
	KeyBridgeURL        = "bridge.base_url"
	KeyBridgeTimeout    = "bridge.http_timeout"
	KeyChainlistURL     = "chainlist.url"
	KeyChainlistCache   = "chainlist.cache_path"
	KeyChainlistTTL     = "chainlist.cache_ttl"
	KeyRPCOverrides     = "rpc.overrides"
	KeyProbeTimeout     = "rpc.probe_timeout"
	KeyRetryAttempts    = "retry.max_attempts"
	KeyRetryDelay       = "retry.base_delay"
	KeyConfirmTimeout   = "confirm_timeout"
	KeyAmountPrecision  = "amount_precision"
	KeyLogLevel         = "log_level"
)

// Settings is the validated configuration of one run.
type Settings struct {
	InputChain  string
	OutputChain string
	Delay       engine.DelayRange

	WithdrawMax bool
	// Amount is the optional fixed range; nil when unset.
	Amount *AmountRange

	PrivateKeys      string
	KeystoreDir      string
	KeystorePassword string

	BridgeURL     string
	BridgeTimeout time.Duration

	ChainlistURL   string
	ChainlistCache string
	ChainlistTTL   time.Duration

	RPCOverrides []string
	ProbeTimeout time.Duration

	RetryAttempts int
	RetryDelay    time.Duration

	ConfirmTimeout  time.Duration
	AmountPrecision int
	LogLevel        string
}

// AmountRange is an inclusive range in whole native units.
type AmountRange struct {
	Low, High decimal.Decimal
}

// New returns a viper instance with defaults and GASBRIDGE_ env overrides.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers every default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTimeout, []string{"0", "0"})
	v.SetDefault(KeyWithdrawMax, false)
	v.SetDefault(KeyPrivateKeys, "private_keys.txt")
	v.SetDefault(KeyBridgeURL, bridge.DefaultBaseURL)
	v.SetDefault(KeyBridgeTimeout, 10*time.Second)
	v.SetDefault(KeyChainlistURL, chain.DefaultChainlistURL)
	v.SetDefault(KeyChainlistCache, "chain_list.json")
	v.SetDefault(KeyChainlistTTL, 24*time.Hour)
	v.SetDefault(KeyProbeTimeout, 10*time.Second)
	v.SetDefault(KeyRetryAttempts, 3)
	v.SetDefault(KeyRetryDelay, time.Second)
	v.SetDefault(KeyConfirmTimeout, 3*time.Minute)
	v.SetDefault(KeyAmountPrecision, engine.DefaultPrecision)
	v.SetDefault(KeyLogLevel, "info")
}

// Load reads v into Settings and validates it.
func Load(v *viper.Viper) (*Settings, error) {
	s, err := Read(v)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Read parses v without validating the run settings. Commands that only
// list chains or wallets use it.
func Read(v *viper.Viper) (*Settings, error) {
	delay, err := intPair(v, KeyTimeout)
	if err != nil {
		return nil, err
	}

	s := &Settings{
		InputChain:       strings.TrimSpace(v.GetString(KeyInputChain)),
		OutputChain:      strings.TrimSpace(v.GetString(KeyOutputChain)),
		Delay:            engine.DelayRange{Min: delay[0], Max: delay[1]},
		WithdrawMax:      v.GetBool(KeyWithdrawMax),
		PrivateKeys:      v.GetString(KeyPrivateKeys),
		KeystoreDir:      v.GetString(KeyKeystoreDir),
		KeystorePassword: v.GetString(KeyKeystorePassword),
		BridgeURL:        v.GetString(KeyBridgeURL),
		BridgeTimeout:    v.GetDuration(KeyBridgeTimeout),
		ChainlistURL:     v.GetString(KeyChainlistURL),
		ChainlistCache:   v.GetString(KeyChainlistCache),
		ChainlistTTL:     v.GetDuration(KeyChainlistTTL),
		RPCOverrides:     v.GetStringSlice(KeyRPCOverrides),
		ProbeTimeout:     v.GetDuration(KeyProbeTimeout),
		RetryAttempts:    v.GetInt(KeyRetryAttempts),
		RetryDelay:       v.GetDuration(KeyRetryDelay),
		ConfirmTimeout:   v.GetDuration(KeyConfirmTimeout),
		AmountPrecision:  v.GetInt(KeyAmountPrecision),
		LogLevel:         v.GetString(KeyLogLevel),
	}

	if raw := v.GetStringSlice(KeyAmount); len(raw) > 0 {
		s.Amount, err = parseAmountRange(raw)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Validate checks the settings without touching the network.
func (s *Settings) Validate() error {
	if s.InputChain == "" || s.OutputChain == "" {
		return configErr("input_chain and output_chain are required")
	}
	if err := s.Delay.Validate(); err != nil {
		return configErr("timeout: %v", err)
	}
	if s.WithdrawMax && s.Amount != nil {
		return configErr("withdraw_max and amount are mutually exclusive")
	}
	if s.Amount != nil {
		if s.Amount.Low.IsNegative() {
			return configErr("amount: lower bound %s is negative", s.Amount.Low)
		}
		if s.Amount.Low.GreaterThan(s.Amount.High) {
			return configErr("amount: lower bound %s exceeds upper bound %s", s.Amount.Low, s.Amount.High)
		}
	}
	if s.AmountPrecision < 0 || s.AmountPrecision > 18 {
		return configErr("amount_precision must be between 0 and 18")
	}
	if err := s.Strategy().Validate(); err != nil {
		return configErr("amount: %v", err)
	}
	if s.RetryAttempts < 1 {
		return configErr("retry.max_attempts must be at least 1")
	}
	if s.RetryDelay < 0 {
		return configErr("retry.base_delay must not be negative")
	}
	if s.ConfirmTimeout <= 0 {
		return configErr("confirm_timeout must be positive")
	}
	if s.BridgeURL == "" {
		return configErr("bridge.base_url is required")
	}
	return nil
}

// Strategy returns the amount strategy. Without a fixed range the balance is
// withdrawn.
func (s *Settings) Strategy() engine.AmountStrategy {
	if s.Amount != nil {
		return engine.FixedRange(s.Amount.Low, s.Amount.High, int32(s.AmountPrecision))
	}
	return engine.WithdrawMax()
}

// PasswordFunc supplies the keystore password when it is not configured.
type PasswordFunc func() (string, error)

// KeySource opens the configured wallets. An empty source is a
// configuration error.
func (s *Settings) KeySource(prompt PasswordFunc) (wallet.KeySource, error) {
	var (
		keys wallet.KeySource
		err  error
	)

	if s.KeystoreDir != "" {
		password := s.KeystorePassword
		if password == "" && prompt != nil {
			if password, err = prompt(); err != nil {
				return nil, fmt.Errorf("read keystore password: %w", err)
			}
		}
		keys, err = wallet.OpenKeystoreDir(s.KeystoreDir, password)
	} else {
		keys, err = wallet.LoadHexKeys(s.PrivateKeys)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, configErr("%v", err)
		}
		return nil, err
	}

	if keys.Len() == 0 {
		return nil, configErr("no private keys configured")
	}
	return keys, nil
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func intPair(v *viper.Viper, key string) ([2]int, error) {
	var out [2]int
	raw := v.GetStringSlice(key)
	if len(raw) != 2 {
		return out, configErr("%s must be a [min, max] pair", key)
	}
	for i, r := range raw {
		n, err := strconv.Atoi(strings.TrimSpace(r))
		if err != nil {
			return out, configErr("%s: %q is not an integer", key, r)
		}
		out[i] = n
	}
	return out, nil
}

func parseAmountRange(raw []string) (*AmountRange, error) {
	if len(raw) != 2 {
		return nil, configErr("amount must be a [lo, hi] pair")
	}
	lo, err := decimal.NewFromString(strings.TrimSpace(raw[0]))
	if err != nil {
		return nil, configErr("amount: %q is not a number", raw[0])
	}
	hi, err := decimal.NewFromString(strings.TrimSpace(raw[1]))
	if err != nil {
		return nil, configErr("amount: %q is not a number", raw[1])
	}
	return &AmountRange{Low: lo, High: hi}, nil
}
