package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"lnprice/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	cfg       Config
	providers telemetry.Providers
)

var rootCmd = &cobra.Command{
	Use:   "jgxx-cli",
	Short: "jgxx-cli extracts the monthly construction material price lists of Liaoning.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(os.Stderr, verbose)

		var err error
		cfg, err = loadConfig(configPath)
		if err != nil {
			return err
		}

		if cfg.Telemetry.Enabled() {
			providers, err = telemetry.Setup(cmd.Context(), "jgxx-cli", cfg.Telemetry)
			if err != nil {
				slog.Warn("failed to setup telemetry exporters", "err", err)
			}
			if providers.MeterProvider != nil {
				telemetry.InstrumentPerfStats(cmd.Context(), 15*time.Second)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		err := providers.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "jgxx.json5", "Path to the config file, a <name>.local.json5 next to it overrides it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
