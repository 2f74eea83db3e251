// Command webpctl runs rendition maintenance against the configured
// repository: bulk conversion, removal and encoder probing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"webp-renditions/internal/encoder"
	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/logging"
	"webp-renditions/internal/startup"
	"webp-renditions/internal/transform"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	logging.Configure(logging.OptionsFromEnv())
	defer func() { _ = logging.Sync() }()

	// Create a context that cancels on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "webpctl",
		Short:         "Maintain WebP and AVIF renditions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $"+startup.ConfigEnv+")")
	root.SetGlobalNormalizationFunc(normalizeFlag)

	root.AddCommand(
		newConvertCmd(&configPath),
		newRemoveCmd(&configPath),
		newProbeCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

// normalizeFlag accepts the older spelling of renamed flags.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "only-thumbs" {
		name = "thumbs-only"
	}
	return pflag.NormalizedName(name)
}

// env is what every subcommand works against.
type env struct {
	config    *startup.Config
	repo      filerepo.Repository
	factory   *transform.Factory
	closeRepo func() error
}

func openEnv(ctx context.Context, configPath string) (*env, error) {
	config, err := startup.NewLoader(configPath).Load()
	if err != nil {
		return nil, err
	}

	repo, closeRepo, err := filerepo.Open(ctx, config.Repository)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	e := &env{config: config, repo: repo, closeRepo: closeRepo}
	if !config.Encoder.Disabled("vips") {
		encoder.InitVips()
	}

	e.factory = transform.NewFactory(config.Transform, repo, encoder.Chain(config.Encoder))
	return e, nil
}

func (e *env) Close() {
	if err := e.closeRepo(); err != nil {
		logging.Warn("Repository close error: %v", err)
	}
	encoder.ShutdownVips()
}
