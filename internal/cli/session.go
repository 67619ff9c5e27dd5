package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"maof-analyst/internal/logging"
	"maof-analyst/internal/metrics"
	"maof-analyst/internal/models"
	"maof-analyst/internal/scenario"
	"maof-analyst/internal/session"
)

const sessionHelp = `Commands:
  add <A|B> <type:strike:qty[:entry]>...   add legs (unpriced legs use the model price)
  strategy <A|B> <name>                    replace a portfolio with a template
  rm <A|B> <n>                             remove leg n (1-based)
  clear <A|B>                              remove every leg
  show [A|B]                               list legs
  risk [A|B]                               risk snapshot
  spot|vol|rate|days <value>               change the market
  market                                   show the market
  sweep <time|intraday|vol> [a|b|diff]     curve family
  compare                                  time sweep of A - B
  help, quit`

// addSessionCommands adds the interactive portfolio editor.
func addSessionCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newSessionCmd(app))
}

func newSessionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session [script]",
		Short: "Edit and analyse portfolios A and B line by line",
		Long: `Start a session holding two portfolios, A and B, for the life of the
process. Commands are read from the script file when given, otherwise from
stdin. In a script the first failing line aborts the session.

` + sessionHelp,
		Example: `  maof session
  maof session book.txt --spot 3712`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			m, interval, err := app.marketFromFlags(cmd)
			if err != nil {
				output.Error("Invalid market input: %v", err)
				return err
			}

			book, err := session.Open(app.Logger)
			if err != nil {
				output.Error("Failed to open session: %v", err)
				return err
			}
			defer book.Close()

			if app.Config.Metrics.Enabled {
				srv, err := metrics.Serve(app.Config.Metrics.Addr, app.Logger)
				if err != nil {
					output.Error("Failed to serve metrics: %v", err)
					return err
				}
				app.Logger.Info().Str("addr", srv.Addr).Msg("Serving metrics")
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
			}

			shell := &sessionShell{
				app:      app,
				book:     book,
				market:   m,
				interval: interval,
				out:      output,
			}

			in := cmd.InOrStdin()
			strict := false
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					output.Error("Failed to open script: %v", err)
					return err
				}
				defer f.Close()
				in = f
				strict = true
			}
			return shell.run(cmd.Context(), in, strict)
		},
	}

	addMarketFlags(cmd.Flags())

	return cmd
}

// sessionShell executes session commands against a book.
type sessionShell struct {
	app      *App
	book     *session.Book
	market   models.MarketState
	interval float64
	out      *Output
}

func (s *sessionShell) run(ctx context.Context, in io.Reader, strict bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.WithOperation(s.app.Logger, "session")
	ctx = logging.WithLogger(ctx, logger)

	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		quit, err := s.exec(ctx, line)
		if err != nil {
			logger.Debug().Err(err).Int("line", lineNo).Msg("Command failed")
			if strict {
				s.out.Error("line %d: %v", lineNo, err)
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			s.out.Error("%v", err)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

// exec runs one command line. It reports whether the session should end.
func (s *sessionShell) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "quit", "exit":
		return true, nil
	case "help":
		s.out.Println(sessionHelp)
		return false, nil
	case "add":
		return false, s.add(ctx, args)
	case "strategy":
		return false, s.strategy(ctx, args)
	case "rm":
		return false, s.remove(ctx, args)
	case "clear":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: clear <A|B>")
		}
		if err := s.book.Clear(ctx, args[0]); err != nil {
			return false, err
		}
		s.out.Success("Cleared %s", session.NormalizeID(args[0]))
		return false, nil
	case "show":
		return false, s.forEach(ctx, args, s.show)
	case "risk":
		return false, s.forEach(ctx, args, s.risk)
	case "spot", "vol", "rate", "days":
		return false, s.setMarket(verb, args)
	case "market":
		s.showMarket()
		return false, nil
	case "sweep":
		return false, s.sweep(ctx, args)
	case "compare":
		return false, s.sweep(ctx, []string{"time", string(scenario.ModeDiff)})
	}
	return false, fmt.Errorf("unknown command %q (try help)", verb)
}

func (s *sessionShell) add(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: add <A|B> <type:strike:qty[:entry]>...")
	}
	legs := make([]models.OptionLeg, 0, len(args)-1)
	for _, spec := range args[1:] {
		leg, err := models.ParseLeg(spec)
		if err != nil {
			return err
		}
		legs = append(legs, leg)
	}
	for _, leg := range s.app.Aggregator.PriceLegs(legs, s.market) {
		if err := s.book.AddLeg(ctx, args[0], leg); err != nil {
			return err
		}
		s.out.Success("%s: added %s", session.NormalizeID(args[0]), leg)
	}
	return nil
}

func (s *sessionShell) strategy(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: strategy <A|B> <name>")
	}
	name := strings.Trim(strings.Join(args[1:], " "), `"'`)
	legs, err := s.app.Catalog.Build(name, s.market.Spot, s.interval)
	if err != nil {
		return err
	}
	legs = s.app.Aggregator.PriceLegs(legs, s.market)
	if err := s.book.SetLegs(ctx, args[0], legs); err != nil {
		return err
	}
	s.out.Success("%s: %s, %d legs", session.NormalizeID(args[0]), name, len(legs))
	return nil
}

func (s *sessionShell) remove(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: rm <A|B> <n>")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("leg number %q: %w", args[1], err)
	}
	leg, err := s.book.RemoveLeg(ctx, args[0], n-1)
	if err != nil {
		return err
	}
	s.out.Success("%s: removed %s", session.NormalizeID(args[0]), leg)
	return nil
}

// forEach applies fn to the named portfolio, or to A and B when none is named.
func (s *sessionShell) forEach(ctx context.Context, args []string, fn func(models.Portfolio)) error {
	ids := []string{session.PortfolioA, session.PortfolioB}
	if len(args) > 0 {
		ids = args[:1]
	}
	for _, id := range ids {
		p, err := s.book.Portfolio(ctx, id)
		if err != nil {
			return err
		}
		fn(p)
	}
	return nil
}

func (s *sessionShell) show(p models.Portfolio) {
	if s.out.IsJSON() {
		s.out.JSON(p)
		return
	}
	s.out.Bold("Portfolio %s", p.ID)
	if len(p.Legs) == 0 {
		s.out.Dim("  (empty)")
		return
	}
	renderLegs(s.out, p.Legs, s.market)
}

func (s *sessionShell) risk(p models.Portfolio) {
	snap := s.app.Aggregator.Snapshot(p.Legs, s.market)
	logger := logging.WithPortfolio(s.app.Logger, p.ID)
	logger.Debug().
		Int("legs", len(p.Legs)).
		Int("skipped", snap.SkippedLegs).
		Msg("Session risk")
	if s.out.IsJSON() {
		s.out.JSON(map[string]interface{}{"portfolio": p.ID, "risk": snap})
		return
	}
	s.out.Bold("Portfolio %s", p.ID)
	renderSnapshot(s.out, snap)
}

func (s *sessionShell) setMarket(field string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <value>", field)
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("%s %q: not a number", field, args[0])
	}

	next := s.market
	switch field {
	case "spot":
		next.Spot = v
	case "vol":
		next.Volatility = v
	case "rate":
		next.RiskFreeRate = v
	case "days":
		next.TimeToExpiry = v / 365
	}
	if err := next.Validate(); err != nil {
		return err
	}
	s.market = next
	s.showMarket()
	return nil
}

func (s *sessionShell) showMarket() {
	if s.out.IsJSON() {
		s.out.JSON(s.market)
		return
	}
	s.out.Info("Spot %s  T %s  r %s  σ %s  x%g",
		FormatPrice(s.market.Spot), FormatDays(s.market.TimeToExpiry),
		FormatVol(s.market.RiskFreeRate), FormatVol(s.market.Volatility), s.market.ContractMultiplier)
}

func (s *sessionShell) sweep(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: sweep <time|intraday|vol> [a|b|diff]")
	}
	mode := scenario.ModeA
	if len(args) > 1 {
		var err error
		if mode, err = scenario.ParseMode(args[1]); err != nil {
			return err
		}
	}

	a, err := s.book.Legs(ctx, session.PortfolioA)
	if err != nil {
		return err
	}
	b, err := s.book.Legs(ctx, session.PortfolioB)
	if err != nil {
		return err
	}
	target := scenario.Target{A: a, B: b, Mode: mode}

	sc := s.app.Config.Scenario
	window := scenario.SpotWindow{RangePct: sc.SpotRangePct, Steps: sc.SpotSteps}

	var set scenario.CurveSet
	switch args[0] {
	case "time":
		set, err = s.app.Evaluator.SweepTime(target, s.market, scenario.TimeAxis{Window: window, Lines: sc.TimeLines})
	case "intraday":
		set, err = s.app.Evaluator.SweepIntraday(target, s.market, scenario.IntradayAxis{
			Window: window, Lines: sc.TimeLines, SessionHours: sc.SessionHours,
			Gap: sc.SettlementGap, HoursPerYear: sc.HoursPerYear,
		})
	case "vol":
		set, err = s.app.Evaluator.SweepVolatility(target, s.market, scenario.VolAxis{
			Window: window, Lines: sc.VolLines, Min: sc.VolMin, Max: sc.VolMax,
		})
	default:
		return fmt.Errorf("unknown sweep %q", args[0])
	}
	if err != nil {
		return err
	}
	logger := logging.FromContext(ctx)
	logger.Debug().Str("kind", set.Kind).Str("mode", string(mode)).Int("curves", len(set.Curves)).Msg("Session sweep")

	if s.out.IsJSON() {
		return s.out.JSON(map[string]interface{}{"mode": mode, "sweep": set})
	}
	renderCurves(s.out, set, mode)
	return nil
}
