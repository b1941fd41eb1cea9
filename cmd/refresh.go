package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/navaids/internal/config"
	"github.com/sells-group/navaids/internal/monitoring"
	"github.com/sells-group/navaids/internal/refresh"
)

var (
	refreshSources  []string
	refreshStrategy string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh cycle",
	Long:  "Fetches every selected feed, normalizes the aids, and stores them using the configured strategy.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if refreshStrategy != "" {
			cfg.Refresh.Strategy = refreshStrategy
		}
		st, err := openStore(ctx, "refresh")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		coord := newCoordinator(st, monitoring.NewMetrics(), refreshSources, "")
		sum, err := coord.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "refresh")
		}

		zap.L().Info("refresh complete",
			zap.Int64("run_id", sum.RunID),
			zap.Int64("stored", sum.Stored),
			zap.Duration("duration", sum.Duration),
		)
		formatSummary(os.Stdout, sum)
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringSliceVar(&refreshSources, "sources", nil, "comma-separated sources to refresh (default all)")
	refreshCmd.Flags().StringVar(&refreshStrategy, "strategy", "",
		fmt.Sprintf("storage strategy: %s or %s (default from config)", config.StrategySwap, config.StrategyDeleteFirst))
	rootCmd.AddCommand(refreshCmd)
}

// formatSummary writes a per-source breakdown of a completed cycle to out.
func formatSummary(out io.Writer, sum *refresh.Summary) {
	_, _ = fmt.Fprintf(out, "run %d (%s): stored %d points in %s\n",
		sum.RunID, sum.Strategy, sum.Stored, sum.Duration.Round(time.Millisecond))
	for _, s := range sum.Sources {
		line := fmt.Sprintf("  %-8s %6d points", s.Name, s.Points)
		if s.Failures > 0 {
			line += fmt.Sprintf("  %d failed: %s", s.Failures, strings.Join(s.Failed, ", "))
		}
		_, _ = fmt.Fprintln(out, line)
	}
}
