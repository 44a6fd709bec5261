package cli

import (
	"os/signal"
	"syscall"

	"github.com/cryptobrief/refinery/internal/pipeline"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command: the continuous polling loop.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the polling loop until interrupted",
	Long: `Serve runs the pipeline continuously at a soft cadence (default one
cycle per minute, stretching when a pass runs long). An interrupt
signal finishes the shutdown cleanly between cycles.

The process exits non-zero after three consecutive failed cycles.

Example:
  refinery serve
  REFINERY_PIPELINE_CYCLE_SECONDS=120 refinery serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	proc, logger, err := buildProcessor(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := pipeline.NewRunner(proc, cfg.Pipeline.CycleInterval(), cfg.Pipeline.MaxFailures, logger)
	return runner.Run(ctx)
}
