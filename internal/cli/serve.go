package cli

import (
	"github.com/spf13/cobra"

	"ragchat/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := buildApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.history.Close()

		srv, err := server.New(a.pipeline, a.ingestor, a.history, server.Options{
			Cognito:  a.cognito,
			Verifier: a.verifier,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		return srv.Listen(cfg.ListenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
