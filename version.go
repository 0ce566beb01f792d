package pizzabot

// Version is the release of the bot, set at build time with
// -ldflags "-X github.com/evgen4ikrus/pizza-bot.Version=v1.2.3".
var Version = "dev"
