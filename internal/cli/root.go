package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yolodolo42/gasbridge/internal/config"
)

type app struct {
	cfgFile string
	v       *viper.Viper
}

// NewRootCmd builds the command tree. The root command runs the bridge.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:   "gasbridge",
		Short: "Bridge native gas balances of many wallets through gas.zip",
		Long: `gasbridge moves the native balance of every configured wallet from one
chain to another through the gas.zip bridge.

Wallets are processed one at a time with a random pause between them. For
each wallet it picks a live RPC endpoint, negotiates an amount against the
bridge quote and current gas prices, then signs, sends and waits for the
deposit transaction.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		RunE: a.runBridge,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./setting.yaml, then $HOME/.gasbridge/setting.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("private-keys", "private_keys.txt", "file with one hex private key per line")
	flags.String("keystore-dir", "", "encrypted keystore directory used instead of --private-keys")
	_ = a.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = a.v.BindPFlag(config.KeyPrivateKeys, flags.Lookup("private-keys"))
	_ = a.v.BindPFlag(config.KeyKeystoreDir, flags.Lookup("keystore-dir"))

	runFlags := rootCmd.Flags()
	runFlags.String("from", "", "source chain name")
	runFlags.String("to", "", "destination chain name")
	_ = a.v.BindPFlag(config.KeyInputChain, runFlags.Lookup("from"))
	_ = a.v.BindPFlag(config.KeyOutputChain, runFlags.Lookup("to"))

	rootCmd.AddCommand(a.chainsCmd(), a.walletsCmd())
	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".gasbridge"))
		}
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("setting")
	}

	if err := a.v.ReadInConfig(); err != nil {
		// A missing default config file is fine, flags and env may be enough.
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("%w: read config: %v", config.ErrConfiguration, err)
	}
	return nil
}
