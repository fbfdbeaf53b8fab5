package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/gasbridge/internal/bridge"
	"github.com/yolodolo42/gasbridge/internal/chain"
	"github.com/yolodolo42/gasbridge/internal/config"
	"github.com/yolodolo42/gasbridge/internal/engine"
	"github.com/yolodolo42/gasbridge/internal/fetch"
	"github.com/yolodolo42/gasbridge/internal/logging"
	"github.com/yolodolo42/gasbridge/internal/retry"
	"github.com/yolodolo42/gasbridge/internal/ui"
	"github.com/yolodolo42/gasbridge/internal/wallet"
)

func (a *app) runBridge(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := config.Load(a.v)
	if err != nil {
		return err
	}
	logger := logging.New(settings.LogLevel, os.Stderr)

	keys, err := openKeys(settings)
	if err != nil {
		return err
	}

	fetcher := newFetcher(settings, logger)
	bridgeClient := bridge.NewClient(settings.BridgeURL, fetcher, logger)

	route, err := resolveRoute(ctx, cmd.OutOrStdout(), bridgeClient, settings)
	if err != nil {
		return err
	}

	candidates, err := endpointCandidates(ctx, settings, fetcher, route.Source, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Str("from_chain", route.Source.Name).
		Str("to_chain", route.Destination.Name).
		Str("mode", settings.Strategy().Mode.String()).
		Int("rpc_candidates", len(candidates)).
		Msg("Resolved bridge route")

	eng := &engine.Engine{
		Route:      route,
		Candidates: candidates,
		Selector:   chain.NewSelector(settings.ProbeTimeout, logger),
		Planner: &engine.Planner{
			Quotes:   bridgeClient,
			Strategy: settings.Strategy(),
			Logger:   logger,
		},
		ConfirmTimeout: settings.ConfirmTimeout,
		Logger:         logger,
	}

	runner := &engine.Runner{
		Keys:   keys,
		Engine: eng,
		Delay:  settings.Delay,
		Logger: logger,
	}

	summary, runErr := runner.Run(ctx)
	fmt.Fprint(cmd.OutOrStdout(), ui.Summary(summary, route.Source))
	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	return nil
}

func newFetcher(settings *config.Settings, logger zerolog.Logger) *fetch.Client {
	policy := retry.Policy{
		MaxAttempts: settings.RetryAttempts,
		BaseDelay:   settings.RetryDelay,
		Logger:      logger,
	}
	return fetch.NewClient(settings.BridgeTimeout, policy)
}

// resolveRoute maps the configured chain names onto the bridge directory,
// printing the available names when one is unknown.
func resolveRoute(ctx context.Context, out io.Writer, client *bridge.Client, settings *config.Settings) (engine.Route, error) {
	dir, err := client.FetchChainDirectory(ctx)
	if err != nil {
		return engine.Route{}, fmt.Errorf("fetch bridge chains: %w", err)
	}

	src, dst, err := dir.Resolve(settings.InputChain, settings.OutputChain)
	if err != nil {
		var unknown *bridge.UnknownChainError
		if errors.As(err, &unknown) {
			fmt.Fprint(out, ui.ChainList("Available chains", dir.Names()))
		}
		return engine.Route{}, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	return engine.Route{Source: src, Destination: dst}, nil
}

// endpointCandidates combines configured overrides with the public RPC
// directory entries for source.
func endpointCandidates(ctx context.Context, settings *config.Settings, fetcher *fetch.Client, source *bridge.Chain, logger zerolog.Logger) ([]string, error) {
	cache := &chain.DirectoryCache{
		URL:     settings.ChainlistURL,
		Path:    settings.ChainlistCache,
		TTL:     settings.ChainlistTTL,
		Fetcher: fetcher,
		Logger:  logger,
	}

	var discovered []string
	rpcs, err := cache.Load(ctx)
	if err == nil {
		discovered, err = rpcs.Endpoints(source.ChainID)
	}
	if err != nil {
		if len(settings.RPCOverrides) == 0 {
			return nil, fmt.Errorf("rpc endpoints for %s: %w", source.Name, err)
		}
		logger.Warn().Err(err).Msg("RPC directory unavailable, using configured overrides only")
	}

	candidates := chain.Candidates(settings.RPCOverrides, discovered)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no RPC endpoints for %s", chain.ErrNoLiveEndpoint, source.Name)
	}
	return candidates, nil
}

// openKeys opens the configured key source, prompting for the keystore
// password when GASBRIDGE_KEYSTORE_PASSWORD is unset.
func openKeys(settings *config.Settings) (wallet.KeySource, error) {
	return settings.KeySource(func() (string, error) {
		return readPassword("Keystore password: ")
	})
}
