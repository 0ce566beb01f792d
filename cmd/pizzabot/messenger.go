package main

import (
	"github.com/spf13/cobra"

	pizzabot "github.com/evgen4ikrus/pizza-bot"
	"github.com/evgen4ikrus/pizza-bot/internal/cli"
	"github.com/evgen4ikrus/pizza-bot/internal/config"
	"github.com/evgen4ikrus/pizza-bot/pkg/adapters/messenger"
	"github.com/evgen4ikrus/pizza-bot/pkg/runner"
)

var messengerCmd = &cobra.Command{
	Use:   "messenger",
	Short: "Run the Facebook Messenger bot (webhook server)",
	Long: `Serves the page webhook at /webhook on LISTEN_ADDR, next to /health, /info,
/metrics and the /events transition feed. Delivery orders are paid in cash to the courier.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := buildStack(cmd, config.ModeMessenger)
		if err != nil {
			return err
		}
		defer stack.Close()

		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			stack.Config.ListenAddr = addr
		}

		channel := messenger.NewChannel(stack.Config.PageAccessToken)
		dispatcher := stack.Dispatcher(
			runner.WithChannel(channel),
			runner.WithPaymentGateway(messenger.ChannelName, runner.NewCashOnDelivery(channel)),
			runner.WithInputLimits(messenger.ChannelName, runner.InputLimits{Text: messenger.MaxTextLen, Payload: messenger.MaxPayloadLen}),
		)
		webhook := messenger.NewWebhook(stack.Config.VerifyToken, dispatcher, stack.Logger)

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		err = serveHTTP(ctx, stack.Config.ListenAddr, stack.HTTPHandler(pizzabot.Version, webhook), stack.Logger)
		if sig := ctx.Signal(); sig != nil {
			stack.Logger.Info("Stopped", "signal", sig.String())
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(messengerCmd)
	messengerCmd.Flags().StringP("listen", "l", "", "Override LISTEN_ADDR")
}
