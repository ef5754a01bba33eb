package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-map/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "inspection-map",
	Short: "Food-safety inspection map builder",
	Long:  "Scrapes the state health-inspection portal for a city, geocodes each establishment, rates it red/yellow/green and writes a JSON snapshot for the map.",
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
