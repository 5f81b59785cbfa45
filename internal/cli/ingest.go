package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ragchat/internal/document"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <files...>",
	Short: "Index documents into the vector store",
	Args:  cobra.MinimumNArgs(1),
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

		var docs []document.Document
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("cli: open %s: %w", path, err)
			}
			doc, err := document.Load(cmd.Context(), filepath.Base(path), f)
			f.Close()
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}

		chunks, err := a.ingestor.Ingest(cmd.Context(), docs...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d chunks from %d files\n", chunks, len(docs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
