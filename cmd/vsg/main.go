package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vsg/api/internal/config"
	"vsg/api/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vsg",
	Short: "VECTOR SERIOUS GAMES portal backend",
	Long: `vsg serves the community portal API and administers its document:
news, weekly schedule, rules, teams, FAQ, players and site settings.

The whole document lives in one durable slot selected by VSG_STORAGE_BACKEND
(memory, redis, postgres, sqlite or git).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if configPath != "" {
			if err := config.LoadFile(configPath, &cfg); err != nil {
				return err
			}
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = logging.New(level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML file overlaid on the environment")

	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format (json, xlsx)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: generated filename in the current directory)")
	exportCmd.Flags().BoolVar(&exportArchive, "archive", false, "Also upload the export to the configured object store")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm replacing the document with seed data")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum revisions to list")

	rootCmd.AddCommand(serveCmd, exportCmd, importCmd, resetCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
