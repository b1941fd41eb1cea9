package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/navaids/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "navaids",
	Short: "USCG aids-to-navigation ingestion and query service",
	Long:  "Fetches the Local Notice to Mariners and weekly light list XML feeds, normalizes every aid into a geospatial point, and serves proximity and polygon queries over them.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
