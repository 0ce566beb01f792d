package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evgen4ikrus/pizza-bot/internal/cli"
	"github.com/evgen4ikrus/pizza-bot/pkg/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persistent sessions",
	Long: `List, inspect, and remove user sessions. Sessions live in Redis when REDIS_URL is set,
in SESSION_DIR otherwise. Keys look like telegram:<chat id> or messenger:<psid>.`,
}

// withSessions opens the session manager for one command run.
func withSessions(cmd *cobra.Command, fn func(*session.Manager) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reveal, _ := cmd.Flags().GetBool("reveal")
	sessions, closeFn, err := cli.OpenSessions(cfg, cfg.Logger(), reveal)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(sessions)
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(sessions *session.Manager) error {
			keys, err := sessions.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}
			for _, k := range keys {
				fmt.Fprintln(out, "- "+k)
			}
			return nil
		})
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-key>",
	Short: "Inspect the state of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("output")
		return withSessions(cmd, func(sessions *session.Manager) error {
			sess, err := sessions.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load session %q: %w", args[0], err)
			}
			return cli.Write(cmd.OutOrStdout(), format, sess)
		})
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-key>...",
	Short: "Remove one or more sessions",
	Long:  `Removes sessions; the users start over at the menu with their next message.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if all, _ := cmd.Flags().GetBool("all"); all {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		return withSessions(cmd, func(sessions *session.Manager) error {
			keys := args
			if all {
				var err error
				if keys, err = sessions.List(cmd.Context()); err != nil {
					return fmt.Errorf("list sessions: %w", err)
				}
			}

			var errs []error
			for _, k := range keys {
				if err := sessions.Delete(cmd.Context(), k); err != nil {
					errs = append(errs, fmt.Errorf("remove %q: %w", k, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", k)
			}
			return errors.Join(errs...)
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionCmd.PersistentFlags().Bool("reveal", false, "Show e-mails, names and exact coordinates unmasked")
	sessionInspectCmd.Flags().StringP("output", "o", cli.FormatJSON, "Output format (json, yaml)")
	sessionRmCmd.Flags().Bool("all", false, "Remove every session")
}
