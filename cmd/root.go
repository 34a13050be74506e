package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/interval-research/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "interval-research",
	Short: "Vehicle service-interval research engine",
	Long:  "Researches manufacturer maintenance schedules for a vehicle, merges them into one recommendation list, and reconciles the result with a car's stored intervals.",
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
