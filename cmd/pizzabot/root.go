package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evgen4ikrus/pizza-bot/internal/cli"
	"github.com/evgen4ikrus/pizza-bot/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "pizzabot",
	Short: "Pizza ordering bot for Telegram and Facebook Messenger",
	Long: `pizzabot takes pizza orders in chat: users browse the menu, fill a cart, and get
routed to pickup or delivery from the nearest pizzeria.

Configuration is read from the environment and from .env files.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringSlice("env-file", nil, "Env files to load (default .env)")
	rootCmd.PersistentFlags().String("log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	files, _ := cmd.Flags().GetStringSlice("env-file")
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// buildStack loads the configuration and wires the stack for mode.
func buildStack(cmd *cobra.Command, mode config.Mode) (*cli.Stack, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cli.Build(cfg, mode)
}
