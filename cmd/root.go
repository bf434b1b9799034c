package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/twmarket-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "twmarket",
	Short: "Taiwan end-of-day market data retrieval",
	Long:  "Fetches daily closing quotes, institutional investor flows, and margin transaction balances from the TWSE and TPEX, normalizing every historical payload format into one canonical row layout.",
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
