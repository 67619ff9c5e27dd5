package scenario

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "maof-analyst/internal/errors"
	"maof-analyst/internal/portfolio"
)

// DefaultGap is used when a settlement gap string cannot be parsed.
const DefaultGap = 16 * time.Hour

// HoursPerYear is the default annualised time base for intraday sweeps.
const HoursPerYear = 365 * 24.0

// SpotWindow is a symmetric spot range around the current spot.
// RangePct is a fraction, 0.1 means ±10%.
type SpotWindow struct {
	RangePct float64 `json:"range_pct"`
	Steps    int     `json:"steps"`
}

// Validate checks the window.
func (w SpotWindow) Validate() error {
	if !(w.RangePct > 0 && w.RangePct < 1) {
		return apperrors.NewValidationError("spot_range_pct", w.RangePct, "must be in (0, 1)")
	}
	if w.Steps < 2 {
		return apperrors.NewValidationError("spot_steps", w.Steps, "must be at least 2")
	}
	return nil
}

// Axis returns the spot values of the window around spot.
func (w SpotWindow) Axis(spot float64) []float64 {
	return SpotAxis(spot, w.RangePct, w.Steps)
}

// SpotAxis returns steps evenly spaced spots over spot·(1 ± rangePct).
func SpotAxis(spot, rangePct float64, steps int) []float64 {
	return portfolio.Linspace(spot*(1-rangePct), spot*(1+rangePct), steps)
}

// TimeAxis configures a sweep from now to expiry.
type TimeAxis struct {
	Window SpotWindow `json:"window"`
	Lines  int        `json:"lines"`
}

// Validate checks the axis.
func (a TimeAxis) Validate() error {
	if err := a.Window.Validate(); err != nil {
		return err
	}
	if a.Lines < 1 {
		return apperrors.NewValidationError("lines", a.Lines, "must be at least 1")
	}
	return nil
}

// IntradayAxis configures a sweep over the hours left in the trading
// session. Gap is the time between session close and settlement, written
// as days:hours:minutes.
type IntradayAxis struct {
	Window       SpotWindow `json:"window"`
	Lines        int        `json:"lines"`
	SessionHours float64    `json:"session_hours"`
	Gap          string     `json:"gap"`
	HoursPerYear float64    `json:"hours_per_year"`
}

// Validate checks the axis. A malformed gap is not an error.
func (a IntradayAxis) Validate() error {
	if err := a.Window.Validate(); err != nil {
		return err
	}
	if a.Lines < 1 {
		return apperrors.NewValidationError("lines", a.Lines, "must be at least 1")
	}
	if a.SessionHours < 0 {
		return apperrors.NewValidationError("session_hours", a.SessionHours, "must be non-negative")
	}
	if a.HoursPerYear <= 0 {
		return apperrors.NewValidationError("hours_per_year", a.HoursPerYear, "must be positive")
	}
	return nil
}

// VolAxis configures a sweep over volatility levels.
type VolAxis struct {
	Window SpotWindow `json:"window"`
	Lines  int        `json:"lines"`
	Min    float64    `json:"min"`
	Max    float64    `json:"max"`
}

// Validate checks the axis.
func (a VolAxis) Validate() error {
	if err := a.Window.Validate(); err != nil {
		return err
	}
	if a.Lines < 1 {
		return apperrors.NewValidationError("lines", a.Lines, "must be at least 1")
	}
	return validateVolRange(a.Min, a.Max)
}

// SurfaceKind selects the second axis of a surface.
type SurfaceKind string

const (
	SurfaceTime       SurfaceKind = "time"
	SurfaceVolatility SurfaceKind = "volatility"
)

// SurfaceAxis configures a spot x (days passed | volatility) grid.
type SurfaceAxis struct {
	Window SpotWindow  `json:"window"`
	Kind   SurfaceKind `json:"kind"`
	Steps  int         `json:"steps"`
	VolMin float64     `json:"vol_min"`
	VolMax float64     `json:"vol_max"`
}

// Validate checks the axis.
func (a SurfaceAxis) Validate() error {
	if err := a.Window.Validate(); err != nil {
		return err
	}
	if a.Steps < 2 {
		return apperrors.NewValidationError("surface_steps", a.Steps, "must be at least 2")
	}
	switch a.Kind {
	case SurfaceTime:
		return nil
	case SurfaceVolatility:
		return validateVolRange(a.VolMin, a.VolMax)
	}
	return apperrors.NewValidationError("surface_kind", a.Kind, "must be time or volatility")
}

func validateVolRange(lo, hi float64) error {
	if lo <= 0 {
		return apperrors.NewValidationError("vol_min", lo, "must be positive")
	}
	if hi < lo {
		return apperrors.NewValidationError("vol_max", hi, "must not be below vol_min")
	}
	return nil
}

// gapLimits bound the days:hours:minutes fields so the total cannot overflow
// a time.Duration.
var gapLimits = [3]struct {
	field string
	max   int
}{
	{"days", 3650},
	{"hours", 23},
	{"minutes", 59},
}

// ParseGapStrict parses a days:hours:minutes duration such as "2:16:30".
func ParseGapStrict(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, apperrors.NewValidationError("gap", s, "expected days:hours:minutes")
	}

	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, apperrors.NewValidationError("gap", s, "fields must be non-negative integers")
		}
		if n > gapLimits[i].max {
			return 0, apperrors.NewValidationError("gap", s, fmt.Sprintf("%s must be at most %d", gapLimits[i].field, gapLimits[i].max))
		}
		vals[i] = n
	}

	d := time.Duration(vals[0])*24*time.Hour +
		time.Duration(vals[1])*time.Hour +
		time.Duration(vals[2])*time.Minute
	return d, nil
}

// ParseGap is ParseGapStrict falling back to DefaultGap on malformed input.
func ParseGap(s string) time.Duration {
	d, err := ParseGapStrict(s)
	if err != nil {
		return DefaultGap
	}
	return d
}

// fraction returns i/(n-1), or 0 for a single line.
func fraction(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}
