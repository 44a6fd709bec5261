package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var runTimeout time.Duration

// runCmd represents the run command: a single batch pass.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one batch of candidates and exit",
	Long: `Run executes a single polling cycle: fetch the latest candidates,
de-duplicate, classify, rewrite, and archive the keepers, then exit.

The exit code reflects whether the pass completed, not how many
candidates passed the filter.

Example:
  refinery run
  refinery run --timeout 10m`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVar(&runTimeout, "timeout", 15*time.Minute, "overall timeout for the pass")
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	proc, logger, err := buildProcessor(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	stats, err := proc.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("single pass complete",
		"fetched", stats.Fetched,
		"skipped", stats.Skipped,
		"passed", stats.Passed,
		"blocked", stats.Blocked,
		"stored", stats.Stored)

	return nil
}
