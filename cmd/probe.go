// -- cmd/probe.go --
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatprobe-cli/internal/config"
	"github.com/xkilldash9x/chatprobe-cli/internal/observability"
	"github.com/xkilldash9x/chatprobe-cli/internal/probe"
	"github.com/xkilldash9x/chatprobe-cli/internal/reporting"
)

// errChecksFailed signals a completed run with failing checks. Execute maps
// it to exit code 1 without the usage banner.
var errChecksFailed = errors.New("one or more checks failed")

// newProbeCmd creates and configures the `probe` command.
func newProbeCmd() *cobra.Command {
	probeCmd := &cobra.Command{
		Use:   "probe [target-url]",
		Short: "Runs the full check catalogue against a chatbot widget",
		Long: `Runs UI, response-quality, and injection checks against the target
chatbot widget using a real browser, and writes a report of the results.
The target defaults to the configured target.url.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so they override the config file and environment
			// with the right precedence.
			if err := viper.BindPFlag("probe.output", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			if err := viper.BindPFlag("probe.format", cmd.Flags().Lookup("format")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.BindPFlag("target.dataset", cmd.Flags().Lookup("dataset"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Target.URL = normalizeTarget(args[0])
			}

			runner, err := probe.NewRunner(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize probe runner: %w", err)
			}

			summary, err := runner.Run(ctx)
			if err != nil {
				logger.Error("Probe run failed", zap.Error(err))
				return err
			}

			reporter, err := reporting.New(cfg.Probe.Format, cfg.Probe.Output)
			if err != nil {
				return fmt.Errorf("failed to initialize reporter: %w", err)
			}
			for _, result := range summary.Results {
				if err := reporter.Write(result); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
			}
			if err := reporter.Close(*summary); err != nil {
				return fmt.Errorf("failed to finalize report: %w", err)
			}

			passed, failed, skipped := summary.Counts()
			fmt.Printf("\nProbe complete. Run ID: %s\n", summary.RunID)
			fmt.Printf("%d passed, %d failed, %d skipped\n", passed, failed, skipped)
			if cfg.Probe.Output != "" {
				fmt.Printf("Report written to %s\n", cfg.Probe.Output)
			}

			if summary.Failed() {
				return errChecksFailed
			}
			return nil
		},
	}

	probeCmd.Flags().StringP("output", "o", "", "Output file path for the report. If unset, the report goes to stdout.")
	probeCmd.Flags().StringP("format", "f", "html", "Format for the output report ('html' or 'json').")
	probeCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
	probeCmd.Flags().String("dataset", "", "Path to the query dataset. (Overrides config/env)")

	return probeCmd
}

// normalizeTarget ensures the target carries a scheme.
func normalizeTarget(target string) string {
	if target == "" || strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return "https://" + target
}

func init() {
	rootCmd.AddCommand(newProbeCmd())
}
