package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"maof-analyst/internal/logging"
	"maof-analyst/internal/models"
	"maof-analyst/internal/portfolio"
	"maof-analyst/internal/pricing"
)

// addPricingCommands adds single-option pricing and portfolio risk.
func addPricingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPriceCmd(app))
	rootCmd.AddCommand(newRiskCmd(app))
}

func newPriceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price a single option with Greeks",
		Example: `  maof price --strike 3700 --type call
  maof price --spot 3700 --strike 3650 --days 12 --vol 0.16 --type put`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			m, _, err := app.marketFromFlags(cmd)
			if err != nil {
				output.Error("Invalid market input: %v", err)
				return err
			}
			typeStr, _ := cmd.Flags().GetString("type")
			typ, err := models.ParseOptionType(typeStr)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			strike, _ := cmd.Flags().GetFloat64("strike")
			if !cmd.Flags().Changed("strike") {
				strike = m.Spot
			}

			q, err := pricing.PriceOption(m.Spot, strike, m.TimeToExpiry, m.RiskFreeRate, m.Volatility, typ)
			if err != nil {
				output.Error("Pricing failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"type":   typ,
					"strike": strike,
					"market": m,
					"quote":  q,
				})
			}

			output.Bold("%s %s", typ, FormatStrike(strike))
			output.Printf("  Spot %s  T %s  r %s  σ %s\n",
				FormatPrice(m.Spot), FormatDays(m.TimeToExpiry), FormatVol(m.RiskFreeRate), FormatVol(m.Volatility))
			output.Println()
			output.Printf("  Price:     %s\n", output.BoldText(FormatPrice(q.Price)))
			output.Printf("  Intrinsic: %s\n", FormatPrice(pricing.Intrinsic(m.Spot, strike, typ)))
			output.Printf("  %s\n", FormatGreeks(q.Delta, q.Gamma, q.Theta, q.Vega))
			return nil
		},
	}

	addMarketFlags(cmd.Flags())
	cmd.Flags().Float64("strike", 0, "strike price (default: spot)")
	cmd.Flags().String("type", "call", "option type: call or put")

	return cmd
}

func newRiskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Risk snapshot of a portfolio",
		Long: `Compute cost, PnL, aggregated Greeks, payoff bounds and breakevens
for a strategy template and/or explicit legs.`,
		Example: `  maof risk --strategy "Iron Condor"
  maof risk --leg call:3700:1 --leg call:3750:-1 --spot 3712`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			logger := logging.WithOperation(app.Logger, "risk")

			m, interval, err := app.marketFromFlags(cmd)
			if err != nil {
				output.Error("Invalid market input: %v", err)
				return err
			}
			legs, err := app.legsFromFlags(cmd, "strategy", "leg", m, interval)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			if len(legs) == 0 {
				err := fmt.Errorf("no legs: use --strategy or --leg")
				output.Error("%v", err)
				return err
			}

			snap := app.Aggregator.Snapshot(legs, m)
			logger.Debug().Int("legs", len(legs)).Msg("Snapshot computed")

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"market": m,
					"legs":   legs,
					"risk":   snap,
				})
			}
			renderLegs(output, legs, m)
			output.Println()
			renderSnapshot(output, snap)
			return nil
		},
	}

	addMarketFlags(cmd.Flags())
	addPortfolioFlags(cmd.Flags(), false)

	return cmd
}

// renderLegs prints legs with their entry and current model prices.
func renderLegs(output *Output, legs []models.OptionLeg, m models.MarketState) {
	table := NewTable(output, "#", "Side", "Type", "Strike", "Qty", "Entry", "Now", "PnL")
	for i, leg := range legs {
		side := output.Green("LONG")
		if !leg.IsLong() {
			side = output.Red("SHORT")
		}
		now := "-"
		pnl := "-"
		if q, err := pricing.PriceLeg(leg, m); err == nil {
			now = FormatPrice(q.Price)
			v := portfolio.ValuePnL([]models.OptionLeg{leg}, m, false)
			pnl = output.PnL(v, FormatPnL(v))
		}
		table.AddRow(
			fmt.Sprintf("%d", i+1),
			side,
			string(leg.Type),
			FormatStrike(leg.Strike),
			FormatQuantity(leg.Quantity),
			FormatPrice(leg.EntryPrice),
			now,
			pnl,
		)
	}
	table.Render()
}

// renderSnapshot prints a RiskSnapshot.
func renderSnapshot(output *Output, snap models.RiskSnapshot) {
	output.Bold("Risk")
	output.Printf("  Cost:        %s\n", FormatMoney(snap.Cost))
	output.Printf("  PnL:         %s\n", output.PnL(snap.PnL, FormatPnL(snap.PnL)))
	output.Printf("  Delta:       %.2f\n", snap.Delta)
	output.Printf("  Gamma:       %.4f\n", snap.Gamma)
	output.Printf("  Theta/day:   %s\n", FormatPnL(snap.Theta))
	output.Printf("  Vega/pt:     %s\n", FormatPnL(snap.Vega))
	output.Printf("  Max profit:  %s\n", output.Green(FormatMoney(snap.MaxProfit)))
	output.Printf("  Max loss:    %s\n", output.Red(FormatMoney(snap.MaxLoss)))
	output.Printf("  Breakevens:  %s\n", FormatBreakevens(snap.Breakevens))
	if snap.SkippedLegs > 0 {
		output.Warning("  %d leg(s) could not be valued and were skipped", snap.SkippedLegs)
	}
}
