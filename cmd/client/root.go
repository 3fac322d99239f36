package main

import (
	"strings"

	"github.com/spf13/cobra"

	"clinical-speech-translator/internal/config"
	"clinical-speech-translator/internal/observability/logging"
)

var (
	verbose bool
	cfg     = config.Load()
)

var rootCmd = &cobra.Command{
	Use:   "clinical-client",
	Short: "Live clinical speech translation client",
	Long: `clinical-client captures speech, sends each settled transcript to the
translation server after a short quiet period, and shows the corrected
translation. Rate-limited requests are retried a fixed number of times.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func setupLogging() {
	level := strings.ToLower(cfg.Observability.LogLevel)
	if verbose {
		level = "debug"
	}
	logging.InitWriter(logging.Config{
		Level:   level,
		Format:  "console",
		Service: "clinical-client",
	}, stderr)
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}
