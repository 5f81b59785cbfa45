package cli

import (
	"github.com/spf13/cobra"

	"ragchat/internal/config"
	"ragchat/internal/log"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Adaptive RAG chat service",
	Long: `ragchat answers questions from conversation memory, a local document
index, and web search, in that order, with graded checkpoints deciding
each hop. It runs as an HTTP service (serve) or one-shot from the
terminal (ask, ingest).`,
	SilenceUsage: true,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func loadConfig() (*config.Config, log.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger := log.Default()
	if gl, ok := logger.(*log.GologLogger); ok {
		gl.SetLevel(level)
	}
	return cfg, logger, nil
}
