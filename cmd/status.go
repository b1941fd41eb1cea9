package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/navaids/internal/model"
	"github.com/sells-group/navaids/internal/monitoring"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show refresh history",
	Long:  "Displays recent refresh cycles and a summary of store health.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "status")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRefreshes(ctx, statusLimit)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if len(runs) == 0 {
			zap.L().Info("no refresh entries found, run 'refresh' to load the feeds")
			return nil
		}

		snap, err := monitoring.NewCollector(st, clockwork.NewRealClock(), 2*cfg.Refresh.Interval).Collect(ctx, 24)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		formatRefreshRuns(os.Stdout, runs)
		formatSnapshot(os.Stdout, snap)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of refresh cycles to show")
	rootCmd.AddCommand(statusCmd)
}

// formatRefreshRuns writes a tabular representation of refresh runs to out.
func formatRefreshRuns(out io.Writer, runs []model.RefreshRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTRATEGY\tSTATUS\tSTARTED\tDURATION\tROWS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t--------\t------\t-------\t--------\t----\t-----")

	for _, r := range runs {
		dur := "-"
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID,
			r.Strategy,
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			r.RowsSynced,
			truncate(r.Error, 60),
		)
	}
	_ = w.Flush()
}

// formatSnapshot writes the health summary below the run table.
func formatSnapshot(out io.Writer, snap *monitoring.Snapshot) {
	last := "never"
	if snap.LastSuccess != nil {
		last = snap.LastSuccess.Format("2006-01-02 15:04")
	}
	_, _ = fmt.Fprintf(out, "\npoints stored: %d\nlast success:  %s\nlast %dh:      %d complete, %d failed (%.0f%% fail rate)\n",
		snap.PointsStored, last, snap.LookbackHours,
		snap.RefreshComplete, snap.RefreshFailed, snap.RefreshFailRate*100)
	if snap.LastError != "" {
		_, _ = fmt.Fprintf(out, "last error:    %s\n", truncate(snap.LastError, 80))
	}
	if snap.Stale {
		_, _ = fmt.Fprintln(out, "warning: no refresh has completed within the staleness window")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
