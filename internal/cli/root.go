// Package cli provides the command-line interface for the options analyst.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"maof-analyst/internal/config"
	"maof-analyst/internal/portfolio"
	"maof-analyst/internal/scenario"
	"maof-analyst/internal/strategy"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	ConfigDir  string
	Logger     zerolog.Logger
	Catalog    *strategy.Catalog
	Aggregator *portfolio.Aggregator
	Evaluator  *scenario.Evaluator
}

// NewApp wires the engine components from cfg.
func NewApp(cfg *config.Config, configDir string, logger zerolog.Logger) *App {
	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		Logger:    logger,
	}

	catalog, err := strategy.LoadCatalogFile(cfg.Strategies.CatalogFile)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load strategy catalog, using built-in templates")
		catalog = strategy.Default()
	}
	app.Catalog = catalog
	app.wire()

	return app
}

// wire rebuilds the logger-bound components.
func (a *App) wire() {
	a.Aggregator = portfolio.NewAggregator(a.Logger)
	a.Evaluator = scenario.NewEvaluator(a.Logger, a.Config.Scenario.Workers)
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "maof",
		Short: "Index options analytics: pricing, strategies, risk and scenarios",
		Long: `maof prices European index options with Black-Scholes, builds multi-leg
strategies from templates, aggregates portfolio Greeks and payoff bounds, and
sweeps PnL across spot against time or volatility.

Market inputs default to the [market] section of config.toml and can be
overridden per command with --spot, --days, --rate, --vol and --multiplier.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
				app.wire()
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/maof-analyst)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", !app.Config.UI.ColorEnabled, "disable coloured output")

	addCoreCommands(rootCmd, app)
	addPricingCommands(rootCmd, app)
	addStrategyCommands(rootCmd, app)
	addScenarioCommands(rootCmd, app)
	addSessionCommands(rootCmd, app)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("MAOF Options Analyst v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.ConfigDir)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Market")
	output.Printf("  Spot:             %s\n", FormatPrice(cfg.Market.Spot))
	output.Printf("  Days to expiry:   %g\n", cfg.Market.DaysToExpiry)
	output.Printf("  Risk-free rate:   %s\n", FormatVol(cfg.Market.RiskFreeRate))
	output.Printf("  Volatility:       %s\n", FormatVol(cfg.Market.Volatility))
	output.Printf("  Multiplier:       %g\n", cfg.Market.ContractMultiplier)
	output.Printf("  Strike interval:  %g\n", cfg.Market.StrikeInterval)
	output.Println()

	s := cfg.Scenario
	output.Bold("Scenario")
	output.Printf("  Spot window:      ±%.0f%% in %d steps\n", s.SpotRangePct*100, s.SpotSteps)
	output.Printf("  Curves:           %d time, %d vol (%s to %s)\n", s.TimeLines, s.VolLines, FormatVol(s.VolMin), FormatVol(s.VolMax))
	output.Printf("  Surface:          %d x %d\n", s.SurfaceSpotSteps, s.SurfaceSteps)
	output.Printf("  Session:          %gh + gap %s, %g h/year\n", s.SessionHours, s.SettlementGap, s.HoursPerYear)
	output.Println()

	output.Bold("Strategies")
	catalog := cfg.Strategies.CatalogFile
	if catalog == "" {
		catalog = "(built-in only)"
	}
	output.Printf("  Catalog:          %s\n", catalog)
	output.Printf("  Default:          %s\n", cfg.Strategies.Default)
	output.Println()

	output.Bold("Logging & Metrics")
	output.Printf("  Level:            %s\n", cfg.Logging.Level)
	output.Printf("  Log file:         %v\n", cfg.Logging.File)
	output.Printf("  Metrics:          %v (%s)\n", cfg.Metrics.Enabled, cfg.Metrics.Addr)
}
