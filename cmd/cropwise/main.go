package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mimir-aip/cropwise/pkg/config"
	"github.com/mimir-aip/cropwise/pkg/logger"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "cropwise",
		Short: "Crop recommendation service with robustness evaluation",
		Long: `cropwise recommends crops from soil and weather readings, quotes
expected market prices, and measures how far each recommendation can be trusted.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.LogLevel = logLevel
			}
			if err := logger.InitLogger("cropwise", loaded.LogLevel, !loaded.IsProduction()); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(serveCmd, evaluateCmd, modelsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
