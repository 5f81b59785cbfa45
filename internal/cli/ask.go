package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ragchat/internal/workflow"
)

var askSessionID string

var (
	nodeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	answerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

var askCmd = &cobra.Command{
	Use:   "ask \"question\"",
	Short: "Ask a single question from the terminal",
	Args:  cobra.ExactArgs(1),
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

		sessionID := askSessionID
		if sessionID == "" {
			sessionID = fmt.Sprintf("session-local-%d-%s", time.Now().Unix(), uuid.NewString()[:8])
		}

		events, errc := a.pipeline.Stream(cmd.Context(), "user-local", sessionID, args[0])

		var final workflow.State
		for ev := range events {
			final = ev.State
			fmt.Fprintln(cmd.OutOrStdout(), nodeStyle.Render("… "+strings.ReplaceAll(ev.Node, "_", " ")))
		}
		if err := <-errc; err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), answerStyle.Render(final.Generation))
		if final.Source != "" {
			fmt.Fprintln(cmd.OutOrStdout(), sourceStyle.Render("source: "+final.Source))
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "session ID to continue a conversation")
	rootCmd.AddCommand(askCmd)
}
