package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/billboard-signals/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "billboard-signals",
	Short: "Location signal estimation for billboard listings",
	Long:  "Estimates daily viewer traffic and the socioeconomic profile around billboard locations from live traffic-flow and business-registry data, caching results per location.",
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
