package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/navaids/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored aids to CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "export")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", exportOut)
		}
		defer f.Close() //nolint:errcheck

		n, err := export.Export(ctx, st, f)
		if err != nil {
			return err
		}
		if err := f.Sync(); err != nil {
			return eris.Wrapf(err, "export: sync %s", exportOut)
		}

		zap.L().Info("export complete", zap.String("file", exportOut), zap.Int("points", n))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "points.csv", "output CSV path")
	rootCmd.AddCommand(exportCmd)
}
