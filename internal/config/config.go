// Package config provides configuration management for the options analyst.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "maof-analyst/internal/errors"
	"maof-analyst/internal/models"
)

// AppName is the configuration directory name.
const AppName = "maof-analyst"

// Config holds all application configuration.
type Config struct {
	Market     MarketConfig     `mapstructure:"market"`
	Scenario   ScenarioConfig   `mapstructure:"scenario"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	UI         UIConfig         `mapstructure:"ui"`
}

// MarketConfig holds the default market inputs.
type MarketConfig struct {
	Spot               float64 `mapstructure:"spot"`
	DaysToExpiry       float64 `mapstructure:"days_to_expiry"`
	RiskFreeRate       float64 `mapstructure:"risk_free_rate"`
	Volatility         float64 `mapstructure:"volatility"`
	ContractMultiplier float64 `mapstructure:"contract_multiplier"`
	StrikeInterval     float64 `mapstructure:"strike_interval"`
}

// ScenarioConfig holds sweep and surface defaults.
type ScenarioConfig struct {
	SpotRangePct     float64 `mapstructure:"spot_range_pct"`
	SpotSteps        int     `mapstructure:"spot_steps"`
	TimeLines        int     `mapstructure:"time_lines"`
	VolLines         int     `mapstructure:"vol_lines"`
	VolMin           float64 `mapstructure:"vol_min"`
	VolMax           float64 `mapstructure:"vol_max"`
	SurfaceSpotSteps int     `mapstructure:"surface_spot_steps"`
	SurfaceSteps     int     `mapstructure:"surface_steps"`
	SessionHours     float64 `mapstructure:"session_hours"`
	SettlementGap    string  `mapstructure:"settlement_gap"` // days:hours:minutes
	HoursPerYear     float64 `mapstructure:"hours_per_year"`
	Workers          int     `mapstructure:"workers"` // 0 = one per CPU
}

// StrategiesConfig holds strategy catalog settings.
type StrategiesConfig struct {
	CatalogFile string `mapstructure:"catalog_file"` // optional YAML with extra templates
	Default     string `mapstructure:"default"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool `mapstructure:"color_enabled"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", AppName)
	}
	return filepath.Join(home, ".config", AppName)
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by a commented template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	loadDotEnv(configDir)

	cfg := &Config{}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	// Unmarshal of plain defaults cannot fail.
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("market.spot", 3700.0)
	v.SetDefault("market.days_to_expiry", 30.0)
	v.SetDefault("market.risk_free_rate", 0.0425)
	v.SetDefault("market.volatility", 0.14)
	v.SetDefault("market.contract_multiplier", 100.0)
	v.SetDefault("market.strike_interval", 10.0)

	v.SetDefault("scenario.spot_range_pct", 0.1)
	v.SetDefault("scenario.spot_steps", 60)
	v.SetDefault("scenario.time_lines", 5)
	v.SetDefault("scenario.vol_lines", 5)
	v.SetDefault("scenario.vol_min", 0.08)
	v.SetDefault("scenario.vol_max", 0.30)
	v.SetDefault("scenario.surface_spot_steps", 30)
	v.SetDefault("scenario.surface_steps", 20)
	v.SetDefault("scenario.session_hours", 8.5)
	v.SetDefault("scenario.settlement_gap", "0:16:0")
	v.SetDefault("scenario.hours_per_year", 8760.0)
	v.SetDefault("scenario.workers", 0)

	v.SetDefault("strategies.catalog_file", "")
	v.SetDefault("strategies.default", "Iron Condor")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "maof.log"))
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9464")

	v.SetDefault("ui.color_enabled", true)
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		// First run: leave a template behind and continue on defaults.
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

// loadDotEnv loads .env from the config directory and the working
// directory. Variables already set in the environment win.
func loadDotEnv(configDir string) {
	for _, path := range []string{filepath.Join(configDir, ".env"), ".env"} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

func applyEnvOverrides(cfg *Config) error {
	floats := []struct {
		env    string
		target *float64
	}{
		{"MAOF_RISK_FREE_RATE", &cfg.Market.RiskFreeRate},
		{"MAOF_VOLATILITY", &cfg.Market.Volatility},
		{"MAOF_MULTIPLIER", &cfg.Market.ContractMultiplier},
		{"MAOF_STRIKE_INTERVAL", &cfg.Market.StrikeInterval},
	}
	for _, f := range floats {
		v := os.Getenv(f.env)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", apperrors.ErrConfigInvalid, f.env, v)
		}
		*f.target = n
	}

	if v := os.Getenv("MAOF_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	m := c.Market
	if m.Spot <= 0 {
		return invalid("market.spot must be positive")
	}
	if m.DaysToExpiry < 0 {
		return invalid("market.days_to_expiry must be non-negative")
	}
	if m.Volatility <= 0 {
		return invalid("market.volatility must be positive")
	}
	if m.ContractMultiplier <= 0 {
		return invalid("market.contract_multiplier must be positive")
	}
	if m.StrikeInterval <= 0 {
		return invalid("market.strike_interval must be positive")
	}

	s := c.Scenario
	if s.SpotRangePct <= 0 || s.SpotRangePct >= 1 {
		return invalid("scenario.spot_range_pct must be between 0 and 1")
	}
	if s.SpotSteps < 2 || s.SurfaceSpotSteps < 2 || s.SurfaceSteps < 2 {
		return invalid("scenario spot and surface steps must be at least 2")
	}
	if s.TimeLines < 1 || s.VolLines < 1 {
		return invalid("scenario.time_lines and scenario.vol_lines must be at least 1")
	}
	if s.VolMin <= 0 || s.VolMax < s.VolMin {
		return invalid("scenario.vol_min must be positive and not above vol_max")
	}
	if s.SessionHours < 0 {
		return invalid("scenario.session_hours must be non-negative")
	}
	if s.HoursPerYear <= 0 {
		return invalid("scenario.hours_per_year must be positive")
	}
	if s.Workers < 0 {
		return invalid("scenario.workers must be non-negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Sprintf("logging.level %q must be debug, info, warn or error", c.Logging.Level))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return invalid("metrics.addr is required when metrics are enabled")
	}

	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", apperrors.ErrConfigInvalid, msg)
}

// MarketState returns the configured market inputs. Days are converted to
// years on a 365-day basis.
func (c *Config) MarketState() models.MarketState {
	return models.MarketState{
		Spot:               c.Market.Spot,
		TimeToExpiry:       c.Market.DaysToExpiry / 365,
		RiskFreeRate:       c.Market.RiskFreeRate,
		Volatility:         c.Market.Volatility,
		ContractMultiplier: c.Market.ContractMultiplier,
	}
}
