package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pizzabot "github.com/evgen4ikrus/pizza-bot"
	"github.com/evgen4ikrus/pizza-bot/internal/cli"
	"github.com/evgen4ikrus/pizza-bot/internal/config"
	"github.com/evgen4ikrus/pizza-bot/internal/presentation/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the bot in the terminal",
	Long: `Runs the conversation locally. Without Moltin credentials a demo catalog is used;
without a Yandex key only shared locations are understood.

Input lines:
  #payload        press a button (e.g. #cart, #add;margherita)
  @55.75,37.62    share a location
  $ok, $fail      answer a payment request
  anything else   send a text message`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := buildStack(cmd, config.ModeConsole)
		if err != nil {
			return err
		}
		defer stack.Close()

		r := pizzabot.NewRunner(cmd.InOrStdin(), cmd.OutOrStdout())
		r.Store = stack.Store
		r.Logger = stack.Logger
		if id, _ := cmd.Flags().GetString("user"); id != "" {
			r.User.ID = id
		}
		if name, _ := cmd.Flags().GetString("name"); name != "" {
			r.User.Name = name
		}

		out := cmd.OutOrStdout()
		if plain, _ := cmd.Flags().GetBool("plain"); !plain && tui.IsTerminal(out) {
			render, err := tui.NewRenderer(tui.Width(out))
			if err != nil {
				return err
			}
			r.Render = render
			tui.PrintBanner(out)
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		fmt.Fprintf(out, "--- pizzabot %s (session %s) ---\n", pizzabot.Version, r.User.Key())
		return cli.IgnoreShutdown(r.Run(ctx, stack.Engine))
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("user", "", "Console user id (default local)")
	chatCmd.Flags().String("name", "", "Name used for the customer record")
	chatCmd.Flags().Bool("plain", false, "Print messages without markdown rendering")
}
