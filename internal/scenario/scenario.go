// Package scenario sweeps portfolio PnL across spot against time or
// volatility, producing curve families and 2D surfaces.
package scenario

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	apperrors "maof-analyst/internal/errors"
	"maof-analyst/internal/metrics"
	"maof-analyst/internal/models"
	"maof-analyst/internal/portfolio"
)

// Mode selects what a target evaluates.
type Mode string

const (
	ModeA    Mode = "a"
	ModeB    Mode = "b"
	ModeDiff Mode = "diff"
)

// ParseMode parses a, b or diff.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeA, ModeB, ModeDiff:
		return m, nil
	}
	return "", apperrors.NewValidationError("mode", s, "must be a, b or diff")
}

// Target is the pair of portfolios a sweep evaluates and which view of them.
type Target struct {
	A    []models.OptionLeg
	B    []models.OptionLeg
	Mode Mode
}

// Single targets one portfolio.
func Single(legs []models.OptionLeg) Target {
	return Target{A: legs, Mode: ModeA}
}

// Compare targets A − B.
func Compare(a, b []models.OptionLeg) Target {
	return Target{A: a, B: b, Mode: ModeDiff}
}

// PnL values the target at m.
func (t Target) PnL(m models.MarketState, atExpiry bool) float64 {
	switch t.Mode {
	case ModeB:
		return portfolio.ValuePnL(t.B, m, atExpiry)
	case ModeDiff:
		return portfolio.ValuePnL(t.A, m, atExpiry) - portfolio.ValuePnL(t.B, m, atExpiry)
	}
	return portfolio.ValuePnL(t.A, m, atExpiry)
}

// Curve is PnL over the spot axis for one value of the swept parameter.
type Curve struct {
	Label string    `json:"label"`
	Param float64   `json:"param"`
	PnL   []float64 `json:"pnl"`
}

// CurveSet is a family of curves sharing a spot axis.
type CurveSet struct {
	Kind      string    `json:"kind"`
	Spots     []float64 `json:"spots"`
	Curves    []Curve   `json:"curves"`
	Reference *Curve    `json:"reference,omitempty"`
}

// Surface is a grid of PnL, Z[i][j] at Y[i] and spot X[j].
type Surface struct {
	Kind SurfaceKind `json:"kind"`
	Mode Mode        `json:"mode"`
	X    []float64   `json:"x"`
	Y    []float64   `json:"y"`
	Z    [][]float64 `json:"z"`
}

// Evaluator runs sweeps. It holds no mutable state.
type Evaluator struct {
	logger  zerolog.Logger
	workers int
}

// NewEvaluator creates an Evaluator. workers bounds surface parallelism,
// 0 means runtime.NumCPU().
func NewEvaluator(logger zerolog.Logger, workers int) *Evaluator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Evaluator{
		logger:  logger.With().Str("component", "scenario").Logger(),
		workers: workers,
	}
}

func checkInputs(t Target, m models.MarketState) error {
	if _, err := ParseMode(string(t.Mode)); err != nil {
		return err
	}
	return m.Validate()
}

func curve(t Target, spots []float64, m models.MarketState, atExpiry bool) []float64 {
	out := make([]float64, len(spots))
	for j, s := range spots {
		out[j] = t.PnL(m.WithSpot(s), atExpiry)
	}
	return out
}

// SweepTime returns axis.Lines curves from now to expiry. The last curve is
// the terminal payoff.
func (e *Evaluator) SweepTime(t Target, m models.MarketState, axis TimeAxis) (CurveSet, error) {
	if err := checkInputs(t, m); err != nil {
		return CurveSet{}, err
	}
	if err := axis.Validate(); err != nil {
		return CurveSet{}, err
	}

	set := CurveSet{Kind: "time", Spots: axis.Window.Axis(m.Spot)}
	for i := 0; i < axis.Lines; i++ {
		remaining := m.TimeToExpiry * (1 - fraction(i, axis.Lines))
		atExpiry := remaining <= 0
		label := fmt.Sprintf("T-%.1fd", remaining*365)
		if atExpiry {
			label = "Expiry"
		}
		set.Curves = append(set.Curves, Curve{
			Label: label,
			Param: remaining,
			PnL:   curve(t, set.Spots, m.WithTime(remaining), atExpiry),
		})
	}

	e.count("time", len(set.Spots)*axis.Lines)
	return set, nil
}

// SweepIntraday returns curves over the hours left in the trading session.
// Time to expiry at each line is the session hours still to run plus the
// settlement gap, over axis.HoursPerYear. m.TimeToExpiry is not used.
func (e *Evaluator) SweepIntraday(t Target, m models.MarketState, axis IntradayAxis) (CurveSet, error) {
	if err := checkInputs(t, m); err != nil {
		return CurveSet{}, err
	}
	if err := axis.Validate(); err != nil {
		return CurveSet{}, err
	}

	gap := ParseGap(axis.Gap)
	gapHours := gap.Hours()
	e.logger.Debug().Str("gap", axis.Gap).Dur("parsed", gap).Msg("Intraday sweep")

	set := CurveSet{Kind: "intraday", Spots: axis.Window.Axis(m.Spot)}
	for i := 0; i < axis.Lines; i++ {
		hoursLeft := axis.SessionHours * (1 - fraction(i, axis.Lines))
		tte := (hoursLeft + gapHours) / axis.HoursPerYear
		atExpiry := tte <= 0
		set.Curves = append(set.Curves, Curve{
			Label: fmt.Sprintf("%.1fh left", hoursLeft),
			Param: tte,
			PnL:   curve(t, set.Spots, m.WithTime(tte), atExpiry),
		})
	}

	e.count("intraday", len(set.Spots)*axis.Lines)
	return set, nil
}

// SweepVolatility returns curves at axis.Lines volatility levels plus a
// reference curve at m.Volatility.
func (e *Evaluator) SweepVolatility(t Target, m models.MarketState, axis VolAxis) (CurveSet, error) {
	if err := checkInputs(t, m); err != nil {
		return CurveSet{}, err
	}
	if err := axis.Validate(); err != nil {
		return CurveSet{}, err
	}

	set := CurveSet{Kind: "volatility", Spots: axis.Window.Axis(m.Spot)}
	for _, vol := range portfolio.Linspace(axis.Min, axis.Max, axis.Lines) {
		set.Curves = append(set.Curves, Curve{
			Label: fmt.Sprintf("IV %.1f%%", vol*100),
			Param: vol,
			PnL:   curve(t, set.Spots, m.WithVolatility(vol), false),
		})
	}
	set.Reference = &Curve{
		Label: fmt.Sprintf("Current IV %.1f%%", m.Volatility*100),
		Param: m.Volatility,
		PnL:   curve(t, set.Spots, m, false),
	}

	e.count("volatility", len(set.Spots)*(axis.Lines+1))
	return set, nil
}

// Surface evaluates every cell of a spot x (days passed | volatility) grid.
// Rows are computed concurrently; each row writes only its own slice.
func (e *Evaluator) Surface(ctx context.Context, t Target, m models.MarketState, axis SurfaceAxis) (Surface, error) {
	if err := checkInputs(t, m); err != nil {
		return Surface{}, err
	}
	if err := axis.Validate(); err != nil {
		return Surface{}, err
	}

	s := Surface{Kind: axis.Kind, Mode: t.Mode, X: axis.Window.Axis(m.Spot)}
	switch axis.Kind {
	case SurfaceTime:
		s.Y = portfolio.Linspace(0, m.TimeToExpiry*365, axis.Steps)
	case SurfaceVolatility:
		s.Y = portfolio.Linspace(axis.VolMin, axis.VolMax, axis.Steps)
	}
	s.Z = make([][]float64, len(s.Y))

	p := pool.New().WithContext(ctx).WithMaxGoroutines(e.workers).WithCancelOnError()
	for i := range s.Y {
		i := i
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			state, atExpiry := surfaceState(m, axis.Kind, s.Y[i])
			s.Z[i] = curve(t, s.X, state, atExpiry)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return Surface{}, apperrors.Wrap(err, "surface evaluation")
	}

	e.count("surface", len(s.X)*len(s.Y))
	e.logger.Debug().Str("kind", string(axis.Kind)).Int("rows", len(s.Y)).Int("cols", len(s.X)).Msg("Surface evaluated")
	return s, nil
}

// surfaceState returns the market state for row value y.
func surfaceState(m models.MarketState, kind SurfaceKind, y float64) (models.MarketState, bool) {
	if kind == SurfaceVolatility {
		return m.WithVolatility(y), false
	}
	remaining := m.TimeToExpiry - y/365
	if remaining <= 1e-12 {
		return m.WithTime(0), true
	}
	return m.WithTime(remaining), false
}

func (e *Evaluator) count(kind string, cells int) {
	metrics.ScenarioCells.WithLabelValues(kind).Add(float64(cells))
}
