package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# MAOF Options Analyst Configuration

[market]
# Underlying index level used when --spot is not given
spot = 3700.0
# Calendar days to expiry (converted with a 365-day year)
days_to_expiry = 30
# Annual risk-free rate, decimal
risk_free_rate = 0.0425
# Annual implied volatility, decimal
volatility = 0.14
# Index points to currency per contract
contract_multiplier = 100.0
# Distance between listed strikes
strike_interval = 10.0

[scenario]
# Spot window for sweeps, fraction of spot (0.1 = +/-10%)
spot_range_pct = 0.1
spot_steps = 60
# Number of curves in time and volatility sweeps
time_lines = 5
vol_lines = 5
vol_min = 0.08
vol_max = 0.30
# Surface resolution (spot x second axis)
surface_spot_steps = 30
surface_steps = 20
# Intraday sweep: hours left in the session and the settlement gap (days:hours:minutes)
session_hours = 8.5
settlement_gap = "0:16:0"
hours_per_year = 8760.0
# Surface workers, 0 = one per CPU
workers = 0

[strategies]
# Optional YAML file with extra or overriding templates
catalog_file = ""
default = "Iron Condor"

[logging]
# debug, info, warn, error
level = "info"
console = true
file = false
max_size = 50
max_backups = 5
max_age = 30

[metrics]
# Expose Prometheus counters while a session is running
enabled = false
addr = "127.0.0.1:9464"

[ui]
color_enabled = true
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

// ConfigPath returns the path of config.toml inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}
