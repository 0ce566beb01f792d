package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evgen4ikrus/pizza-bot/internal/presentation/graph"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/session"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the conversation state machine as a Mermaid diagram",
	Long: `Prints a Mermaid flowchart of the conversation states. With --session the
state of that session is highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("session")
		if key == "" {
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(domain.Transitions(), nil))
			return nil
		}
		return withSessions(cmd, func(sessions *session.Manager) error {
			sess, err := sessions.Load(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("load session %q: %w", key, err)
			}
			overlay := &graph.Overlay{Current: sess.State}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(domain.Transitions(), overlay))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the state of this session")
}
