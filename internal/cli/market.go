package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"maof-analyst/internal/models"
)

// addMarketFlags registers the per-command market overrides. Unset flags
// fall back to the [market] section of the config.
func addMarketFlags(flags *pflag.FlagSet) {
	flags.Float64("spot", 0, "underlying spot (default from config)")
	flags.Float64("days", 0, "calendar days to expiry (default from config)")
	flags.Float64("rate", 0, "annual risk-free rate, decimal (default from config)")
	flags.Float64("vol", 0, "annual volatility, decimal (default from config)")
	flags.Float64("multiplier", 0, "contract multiplier (default from config)")
	flags.Float64("interval", 0, "strike interval for strategy templates (default from config)")
}

// marketFromFlags resolves the market state and strike interval for cmd.
func (a *App) marketFromFlags(cmd *cobra.Command) (models.MarketState, float64, error) {
	m := a.Config.MarketState()
	interval := a.Config.Market.StrikeInterval

	overrides := []struct {
		name   string
		target *float64
		scale  float64
	}{
		{"spot", &m.Spot, 1},
		{"days", &m.TimeToExpiry, 1.0 / 365},
		{"rate", &m.RiskFreeRate, 1},
		{"vol", &m.Volatility, 1},
		{"multiplier", &m.ContractMultiplier, 1},
		{"interval", &interval, 1},
	}
	for _, o := range overrides {
		if !cmd.Flags().Changed(o.name) {
			continue
		}
		v, err := cmd.Flags().GetFloat64(o.name)
		if err != nil {
			return m, 0, err
		}
		*o.target = v * o.scale
	}

	if err := m.Validate(); err != nil {
		return m, 0, err
	}
	if interval <= 0 {
		return m, 0, fmt.Errorf("strike interval must be positive, got %g", interval)
	}
	return m, interval, nil
}

// addPortfolioFlags registers the flags selecting portfolio A and, when
// compare is set, portfolio B.
func addPortfolioFlags(flags *pflag.FlagSet, compare bool) {
	flags.String("strategy", "", "strategy template for portfolio A")
	flags.StringArray("leg", nil, "leg type:strike:qty[:entry] for portfolio A (repeatable)")
	if compare {
		flags.String("compare-strategy", "", "strategy template for portfolio B")
		flags.StringArray("compare-leg", nil, "leg type:strike:qty[:entry] for portfolio B (repeatable)")
	}
}

// legsFromFlags builds a portfolio from a strategy name plus explicit legs.
// Legs without an entry price are priced at m.
func (a *App) legsFromFlags(cmd *cobra.Command, strategyFlag, legFlag string, m models.MarketState, interval float64) ([]models.OptionLeg, error) {
	name, _ := cmd.Flags().GetString(strategyFlag)
	specs, _ := cmd.Flags().GetStringArray(legFlag)

	var legs []models.OptionLeg
	if name != "" {
		built, err := a.Catalog.Build(name, m.Spot, interval)
		if err != nil {
			return nil, err
		}
		legs = append(legs, built...)
	}
	for _, spec := range specs {
		leg, err := models.ParseLeg(spec)
		if err != nil {
			return nil, fmt.Errorf("--%s %q: %w", legFlag, spec, err)
		}
		legs = append(legs, leg)
	}

	return a.Aggregator.PriceLegs(legs, m), nil
}
