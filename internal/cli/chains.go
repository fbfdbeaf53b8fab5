package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yolodolo42/gasbridge/internal/bridge"
	"github.com/yolodolo42/gasbridge/internal/config"
	"github.com/yolodolo42/gasbridge/internal/ui"
)

func (a *app) chainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List chains supported by the bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Read(a.v)
			if err != nil {
				return err
			}
			logger := newCommandLogger(settings)

			client := bridge.NewClient(settings.BridgeURL, newFetcher(settings, logger), logger)
			dir, err := client.FetchChainDirectory(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch bridge chains: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), ui.ChainList(fmt.Sprintf("%d chains", len(dir.Names())), dir.Names()))
			return nil
		},
	}
}
