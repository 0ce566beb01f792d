package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evgen4ikrus/pizza-bot/internal/config"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/render"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <address>",
	Short: "Show the nearest pizzeria and the delivery fee for an address",
	Long: `Geocodes the address, picks the nearest pizzeria and prices the delivery the same
way the bot does. Use --at lat,lon to skip geocoding.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if at, _ := cmd.Flags().GetString("at"); at != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := buildStack(cmd, config.ModeOps)
		if err != nil {
			return err
		}
		defer stack.Close()

		var (
			quote  domain.Quote
			coords domain.Coordinates
		)
		if at, _ := cmd.Flags().GetString("at"); at != "" {
			if coords, err = parseCoordinates(at); err != nil {
				return err
			}
			quote, err = stack.Engine.QuoteAt(cmd.Context(), coords)
		} else {
			quote, coords, err = stack.Engine.Quote(cmd.Context(), strings.Join(args, " "))
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Point:     %s\n", coords)
		fmt.Fprintf(out, "Nearest:   %s (%s)\n", quote.Location.Alias, quote.Location.Address)
		fmt.Fprintf(out, "Distance:  %s\n", render.Distance(quote.DistanceKm))
		fmt.Fprintf(out, "Tier:      %s\n", quote.Tier)
		if quote.Tier.Deliverable() {
			fmt.Fprintf(out, "Fee:       %s\n", quote.Fee)
		} else {
			fmt.Fprintln(out, "Fee:       no delivery, pickup only")
		}
		return nil
	},
}

func parseCoordinates(s string) (domain.Coordinates, error) {
	lat, lon, ok := strings.Cut(s, ",")
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("coordinates must be lat,lon, got %q", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("bad latitude: %w", err)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("bad longitude: %w", err)
	}
	c := domain.Coordinates{Latitude: la, Longitude: lo}
	if !c.Valid() {
		return domain.Coordinates{}, fmt.Errorf("%w: coordinates out of range: %s", domain.ErrValidation, c)
	}
	return c, nil
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().String("at", "", "Coordinates as lat,lon instead of an address")
}
