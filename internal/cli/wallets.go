package cli

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/gasbridge/internal/config"
	"github.com/yolodolo42/gasbridge/internal/logging"
	"github.com/yolodolo42/gasbridge/internal/ui"
	"github.com/yolodolo42/gasbridge/internal/wallet"
	"golang.org/x/term"
)

func (a *app) walletsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wallets",
		Short: "List the addresses of the configured keys",
		Long:  `Decodes every configured key and prints its address. No network access.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Read(a.v)
			if err != nil {
				return err
			}
			keys, err := openKeys(settings)
			if err != nil {
				return err
			}

			addresses := make([]common.Address, 0, keys.Len())
			for i := 0; i < keys.Len(); i++ {
				key, err := keys.Key(i)
				if err != nil {
					return fmt.Errorf("wallet %d: %w", i, err)
				}
				addresses = append(addresses, crypto.PubkeyToAddress(key.PublicKey))
				wallet.ZeroKey(key)
			}

			fmt.Fprint(cmd.OutOrStdout(), ui.WalletList(addresses))
			return nil
		},
	}
}

func newCommandLogger(settings *config.Settings) zerolog.Logger {
	return logging.New(settings.LogLevel, os.Stderr)
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w: keystore password required, set %s_KEYSTORE_PASSWORD", config.ErrConfiguration, config.EnvPrefix)
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return "", err
	}
	return string(password), nil
}
