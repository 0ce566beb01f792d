package main

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	pizzabot "github.com/evgen4ikrus/pizza-bot"
	"github.com/evgen4ikrus/pizza-bot/internal/cli"
	"github.com/evgen4ikrus/pizza-bot/internal/config"
	"github.com/evgen4ikrus/pizza-bot/pkg/adapters/telegram"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
	"github.com/evgen4ikrus/pizza-bot/pkg/runner"
)

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Run the Telegram bot (long polling)",
	Long: `Polls the Telegram Bot API for updates. With TG_PROVIDER_TOKEN set, delivery orders
are paid with Telegram invoices; otherwise they are paid in cash to the courier.
Health, metrics and the transition feed are served on LISTEN_ADDR unless --no-http is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := buildStack(cmd, config.ModeTelegram)
		if err != nil {
			return err
		}
		defer stack.Close()

		api, err := tgbotapi.NewBotAPI(stack.Config.TelegramToken)
		if err != nil {
			return fmt.Errorf("connect to Telegram: %w", err)
		}
		stack.Logger.Info("Authorized on Telegram", "bot", api.Self.UserName)

		channel := telegram.NewChannel(api)
		pollerOpts := []telegram.PollerOption{
			telegram.WithWorkers(stack.Config.Workers),
			telegram.WithPollerLogger(stack.Logger),
		}
		var gateway ports.PaymentGateway = runner.NewCashOnDelivery(channel)
		if stack.Config.ProviderToken != "" {
			invoices := telegram.NewInvoices(api, stack.Config.ProviderToken)
			gateway = invoices
			pollerOpts = append(pollerOpts, telegram.WithInvoices(invoices))
		}

		dispatcher := stack.Dispatcher(
			runner.WithChannel(channel),
			runner.WithPaymentGateway(telegram.ChannelName, gateway),
			runner.WithInputLimits(telegram.ChannelName, runner.InputLimits{Text: telegram.MaxTextLen, Payload: telegram.MaxCallbackData}),
		)
		poller := telegram.NewPoller(api, dispatcher, pollerOpts...)

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return cli.IgnoreShutdown(poller.Run(gctx))
		})
		if noHTTP, _ := cmd.Flags().GetBool("no-http"); !noHTTP {
			g.Go(func() error {
				return serveHTTP(gctx, stack.Config.ListenAddr, stack.HTTPHandler(pizzabot.Version, nil), stack.Logger)
			})
		}

		err = g.Wait()
		if sig := ctx.Signal(); sig != nil {
			stack.Logger.Info("Stopped", "signal", sig.String())
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(telegramCmd)
	telegramCmd.Flags().Bool("no-http", false, "Do not serve health and metrics")
}
