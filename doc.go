/*
Package pizzabot is the core of a chat-driven pizza ordering bot.

Users browse a catalog, build a cart, and get routed to pickup or delivery from the
nearest pizzeria. The catalog, carts, customers and pizzeria records live in an external
commerce backend; addresses are resolved by a geocoder. Telegram and Facebook Messenger
share one channel-agnostic engine.

# Concept

Every user has one Session holding a single State. An inbound Event is handled against a
snapshot of that session and produces an explicit Outcome:

  - Advance: persist the next session, then send the replies.
  - Retry: send the replies (a re-prompt or "try again"), persist nothing.
  - Fatal: log and drop the event, persist nothing.

The engine never persists anything itself. The runner package loads the session under a
per-user lock, calls Step, applies the outcome and sends the replies through the channel
of the user.

# Usage

	package main

	import (
		"context"
		"log"
		"os"

		"github.com/evgen4ikrus/pizza-bot"
		"github.com/evgen4ikrus/pizza-bot/pkg/adapters/moltin"
		"github.com/evgen4ikrus/pizza-bot/pkg/adapters/yandex"
	)

	func main() {
		eng, err := pizzabot.New(
			moltin.New(os.Getenv("MOLTIN_CLIENT_ID"), os.Getenv("MOLTIN_CLIENT_SECRET")),
			yandex.New(os.Getenv("YANDEX_API_KEY")),
		)
		if err != nil {
			log.Fatal(err)
		}

		// Chat with the bot in the terminal.
		if err := pizzabot.NewRunner(os.Stdin, os.Stdout).Run(context.Background(), eng); err != nil {
			log.Fatal(err)
		}
	}
*/
package pizzabot
