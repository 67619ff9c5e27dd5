package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"maof-analyst/internal/strategy"
)

// addStrategyCommands adds the strategy template commands.
func addStrategyCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Strategy templates",
		Long:  "Browse the strategy catalog and expand templates into priced legs.",
	}

	cmd.AddCommand(newStrategyListCmd(app))
	cmd.AddCommand(newStrategyLegsCmd(app))

	rootCmd.AddCommand(cmd)
}

func newStrategyListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List strategies by market view and volatility regime",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			all, _ := cmd.Flags().GetBool("all")

			if output.IsJSON() {
				if all {
					return output.JSON(app.Catalog.Names())
				}
				return output.JSON(strategy.Matrix())
			}

			if all {
				for _, name := range app.Catalog.Names() {
					output.Println(name)
				}
				return nil
			}

			var view string
			for _, g := range strategy.Matrix() {
				if string(g.View) != view {
					if view != "" {
						output.Println()
					}
					view = string(g.View)
					output.Bold("%s", view)
				}
				output.Printf("  %-10s %s\n", output.Cyan(string(g.Regime)), strings.Join(g.Strategies, ", "))
			}
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "list every catalog name including user templates")

	return cmd
}

func newStrategyLegsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legs <name>",
		Short: "Expand a strategy into priced legs with its risk",
		Example: `  maof strategy legs "Iron Condor"
  maof strategy legs "Bull Call Spread" --spot 3712 --interval 25`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			m, interval, err := app.marketFromFlags(cmd)
			if err != nil {
				output.Error("Invalid market input: %v", err)
				return err
			}

			legs, err := app.Catalog.Build(args[0], m.Spot, interval)
			if err != nil {
				output.Error("%v", err)
				output.Dim("Run 'maof strategy list --all' for available names.")
				return err
			}
			legs = app.Aggregator.PriceLegs(legs, m)
			snap := app.Aggregator.Snapshot(legs, m)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"strategy": args[0],
					"atm":      strategy.ATMStrike(m.Spot, interval),
					"legs":     legs,
					"risk":     snap,
				})
			}

			output.Bold("%s", args[0])
			output.Dim("ATM %s, interval %s", FormatStrike(strategy.ATMStrike(m.Spot, interval)), FormatStrike(interval))
			output.Println()
			renderLegs(output, legs, m)
			output.Println()
			renderSnapshot(output, snap)
			return nil
		},
	}

	addMarketFlags(cmd.Flags())

	return cmd
}
