package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"maof-analyst/internal/logging"
	"maof-analyst/internal/models"
	"maof-analyst/internal/scenario"
)

// maxTableRows bounds the spot rows printed for a curve family.
const maxTableRows = 15

// addScenarioCommands adds the sweep commands.
func addScenarioCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Scenario sweeps across spot",
		Long: `Evaluate portfolio PnL over a spot window while varying time or volatility.

Portfolio A comes from --strategy/--leg and portfolio B from
--compare-strategy/--compare-leg. --mode selects a, b or diff (A - B);
it defaults to diff when B is given and a otherwise.`,
	}

	cmd.AddCommand(newSweepTimeCmd(app))
	cmd.AddCommand(newSweepIntradayCmd(app))
	cmd.AddCommand(newSweepVolCmd(app))
	cmd.AddCommand(newSweepSurfaceCmd(app))

	rootCmd.AddCommand(cmd)
}

func addSweepFlags(cmd *cobra.Command) {
	addMarketFlags(cmd.Flags())
	addPortfolioFlags(cmd.Flags(), true)
	cmd.Flags().String("mode", "", "a, b or diff")
	cmd.Flags().Float64("range", 0, "spot window as a fraction of spot (default from config)")
	cmd.Flags().Int("steps", 0, "spot steps (default from config)")
	cmd.Flags().Int("lines", 0, "number of curves (default from config)")
}

// sweepInputs is what every sweep command resolves from its flags.
type sweepInputs struct {
	market models.MarketState
	target scenario.Target
	window scenario.SpotWindow
	lines  int
}

func (a *App) sweepInputs(cmd *cobra.Command, defaultLines int) (sweepInputs, error) {
	var in sweepInputs

	m, interval, err := a.marketFromFlags(cmd)
	if err != nil {
		return in, err
	}
	in.market = m

	legsA, err := a.legsFromFlags(cmd, "strategy", "leg", m, interval)
	if err != nil {
		return in, err
	}
	legsB, err := a.legsFromFlags(cmd, "compare-strategy", "compare-leg", m, interval)
	if err != nil {
		return in, err
	}

	modeStr, _ := cmd.Flags().GetString("mode")
	mode := scenario.ModeA
	if len(legsB) > 0 {
		mode = scenario.ModeDiff
	}
	if modeStr != "" {
		if mode, err = scenario.ParseMode(modeStr); err != nil {
			return in, err
		}
	}
	if mode != scenario.ModeB && len(legsA) == 0 {
		return in, fmt.Errorf("portfolio A is empty: use --strategy or --leg")
	}
	if mode != scenario.ModeA && len(legsB) == 0 {
		return in, fmt.Errorf("portfolio B is empty: use --compare-strategy or --compare-leg")
	}
	in.target = scenario.Target{A: legsA, B: legsB, Mode: mode}

	sc := a.Config.Scenario
	in.window = scenario.SpotWindow{RangePct: sc.SpotRangePct, Steps: sc.SpotSteps}
	in.lines = defaultLines
	if cmd.Flags().Changed("range") {
		in.window.RangePct, _ = cmd.Flags().GetFloat64("range")
	}
	if cmd.Flags().Changed("steps") {
		in.window.Steps, _ = cmd.Flags().GetInt("steps")
	}
	if cmd.Flags().Changed("lines") {
		in.lines, _ = cmd.Flags().GetInt("lines")
	}
	return in, nil
}

// runCurves is the shared body of the curve-family sweeps.
func (a *App) runCurves(cmd *cobra.Command, defaultLines int, sweep func(sweepInputs) (scenario.CurveSet, error)) error {
	output := NewOutput(cmd)
	logger := logging.WithOperation(a.Logger, "sweep")

	in, err := a.sweepInputs(cmd, defaultLines)
	if err != nil {
		output.Error("%v", err)
		return err
	}

	start := time.Now()
	set, err := sweep(in)
	if err != nil {
		output.Error("Sweep failed: %v", err)
		return err
	}
	logging.LogSweep(logger, set.Kind, len(set.Curves), len(set.Curves)*len(set.Spots), time.Since(start))

	if output.IsJSON() {
		return output.JSON(map[string]interface{}{
			"market": in.market,
			"mode":   in.target.Mode,
			"sweep":  set,
		})
	}
	renderCurves(output, set, in.target.Mode)
	return nil
}

func newSweepTimeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "time",
		Short: "PnL curves from now to expiry",
		Example: `  maof sweep time --strategy "Iron Condor"
  maof sweep time --strategy "Long Straddle" --compare-strategy "Short Strangle" --mode diff`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runCurves(cmd, app.Config.Scenario.TimeLines, func(in sweepInputs) (scenario.CurveSet, error) {
				return app.Evaluator.SweepTime(in.target, in.market, scenario.TimeAxis{Window: in.window, Lines: in.lines})
			})
		},
	}
	addSweepFlags(cmd)
	return cmd
}

func newSweepIntradayCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intraday",
		Short: "PnL curves over the hours left in the session",
		Long: `Time to expiry at each curve is the session hours still to run plus the
settlement gap (days:hours:minutes), over the hours-per-year base. A
malformed gap falls back to 16 hours.`,
		Example: `  maof sweep intraday --strategy "Short Straddle" --session-hours 6 --gap 2:16:0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := app.Config.Scenario
			hours, gap := sc.SessionHours, sc.SettlementGap
			if cmd.Flags().Changed("session-hours") {
				hours, _ = cmd.Flags().GetFloat64("session-hours")
			}
			if cmd.Flags().Changed("gap") {
				gap, _ = cmd.Flags().GetString("gap")
			}
			if _, err := scenario.ParseGapStrict(gap); err != nil {
				app.Logger.Warn().Str("gap", gap).Dur("using", scenario.DefaultGap).Msg("Malformed settlement gap")
			}

			return app.runCurves(cmd, sc.TimeLines, func(in sweepInputs) (scenario.CurveSet, error) {
				return app.Evaluator.SweepIntraday(in.target, in.market, scenario.IntradayAxis{
					Window:       in.window,
					Lines:        in.lines,
					SessionHours: hours,
					Gap:          gap,
					HoursPerYear: sc.HoursPerYear,
				})
			})
		},
	}
	addSweepFlags(cmd)
	cmd.Flags().Float64("session-hours", 0, "trading hours left in the session (default from config)")
	cmd.Flags().String("gap", "", "settlement gap days:hours:minutes (default from config)")
	return cmd
}

func newSweepVolCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vol",
		Short:   "PnL curves across volatility levels",
		Example: `  maof sweep vol --strategy "Long Straddle" --vol-min 0.1 --vol-max 0.4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lo, hi := app.volRange(cmd)
			return app.runCurves(cmd, app.Config.Scenario.VolLines, func(in sweepInputs) (scenario.CurveSet, error) {
				return app.Evaluator.SweepVolatility(in.target, in.market, scenario.VolAxis{
					Window: in.window, Lines: in.lines, Min: lo, Max: hi,
				})
			})
		},
	}
	addSweepFlags(cmd)
	addVolRangeFlags(cmd)
	return cmd
}

func addVolRangeFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("vol-min", 0, "lowest volatility (default from config)")
	cmd.Flags().Float64("vol-max", 0, "highest volatility (default from config)")
}

func (a *App) volRange(cmd *cobra.Command) (float64, float64) {
	lo, hi := a.Config.Scenario.VolMin, a.Config.Scenario.VolMax
	if cmd.Flags().Changed("vol-min") {
		lo, _ = cmd.Flags().GetFloat64("vol-min")
	}
	if cmd.Flags().Changed("vol-max") {
		hi, _ = cmd.Flags().GetFloat64("vol-max")
	}
	return lo, hi
}

func newSweepSurfaceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "surface",
		Short: "PnL grid over spot and days passed or volatility",
		Example: `  maof sweep surface --strategy "Iron Condor" --axis time
  maof sweep surface --strategy "Long Straddle" --axis volatility --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			logger := logging.WithOperation(app.Logger, "surface")
			sc := app.Config.Scenario

			in, err := app.sweepInputs(cmd, sc.SurfaceSteps)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			if !cmd.Flags().Changed("steps") {
				in.window.Steps = sc.SurfaceSpotSteps
			}
			axisName, _ := cmd.Flags().GetString("axis")
			lo, hi := app.volRange(cmd)
			axis := scenario.SurfaceAxis{
				Window: in.window,
				Kind:   scenario.SurfaceKind(axisName),
				Steps:  in.lines,
				VolMin: lo,
				VolMax: hi,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			start := time.Now()
			surface, err := app.Evaluator.Surface(ctx, in.target, in.market, axis)
			if err != nil {
				output.Error("Surface failed: %v", err)
				return err
			}
			logging.LogSweep(logger, "surface", len(surface.Y), len(surface.X)*len(surface.Y), time.Since(start))

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"market":  in.market,
					"surface": surface,
				})
			}
			renderSurface(output, surface)
			return nil
		},
	}
	addSweepFlags(cmd)
	addVolRangeFlags(cmd)
	cmd.Flags().String("axis", string(scenario.SurfaceTime), "second axis: time or volatility")
	return cmd
}

// sampleIndexes picks at most limit evenly spread indexes of n, always
// including the first and last.
func sampleIndexes(n, limit int) []int {
	if n <= limit {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	idx := make([]int, limit)
	for i := range idx {
		idx[i] = i * (n - 1) / (limit - 1)
	}
	return idx
}

func renderCurves(output *Output, set scenario.CurveSet, mode scenario.Mode) {
	output.Bold("%s sweep (%s)", set.Kind, modeLabel(mode))

	headers := []string{"Spot"}
	curves := set.Curves
	if set.Reference != nil {
		curves = append(append([]scenario.Curve{}, curves...), *set.Reference)
	}
	for _, c := range curves {
		headers = append(headers, c.Label)
	}

	table := NewTable(output, headers...)
	for _, j := range sampleIndexes(len(set.Spots), maxTableRows) {
		row := []string{FormatPrice(set.Spots[j])}
		for _, c := range curves {
			row = append(row, output.PnL(c.PnL[j], FormatPnL(c.PnL[j])))
		}
		table.AddRow(row...)
	}
	table.Render()
}

func renderSurface(output *Output, s scenario.Surface) {
	yLabel := "Days passed"
	if s.Kind == scenario.SurfaceVolatility {
		yLabel = "Vol"
	}
	output.Bold("PnL surface (%s), %d x %d", modeLabel(s.Mode), len(s.X), len(s.Y))

	cols := sampleIndexes(len(s.X), 8)
	headers := []string{yLabel}
	for _, j := range cols {
		headers = append(headers, FormatPrice(s.X[j]))
	}

	table := NewTable(output, headers...)
	for i, y := range s.Y {
		label := fmt.Sprintf("%.1f", y)
		if s.Kind == scenario.SurfaceVolatility {
			label = FormatVol(y)
		}
		row := []string{label}
		for _, j := range cols {
			row = append(row, output.PnL(s.Z[i][j], FormatMoney(s.Z[i][j])))
		}
		table.AddRow(row...)
	}
	table.Render()
}

func modeLabel(m scenario.Mode) string {
	switch m {
	case scenario.ModeB:
		return "portfolio B"
	case scenario.ModeDiff:
		return "A - B"
	}
	return "portfolio A"
}
