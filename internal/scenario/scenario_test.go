package scenario

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	apperrors "maof-analyst/internal/errors"
	"maof-analyst/internal/models"
	"maof-analyst/internal/portfolio"
)

func market() models.MarketState {
	return models.MarketState{
		Spot:               1000,
		TimeToExpiry:       30.0 / 365,
		RiskFreeRate:       0.0425,
		Volatility:         0.14,
		ContractMultiplier: 100,
	}
}

func straddle() []models.OptionLeg {
	return []models.OptionLeg{
		{Type: models.Call, Strike: 1000, Quantity: 1, EntryPrice: 20},
		{Type: models.Put, Strike: 1000, Quantity: 1, EntryPrice: 20},
	}
}

func shortCall() []models.OptionLeg {
	return []models.OptionLeg{{Type: models.Call, Strike: 1020, Quantity: -1, EntryPrice: 10}}
}

func window() SpotWindow {
	return SpotWindow{RangePct: 0.1, Steps: 21}
}

func evaluator() *Evaluator {
	return NewEvaluator(zerolog.Nop(), 4)
}

func TestSweepTime_LastCurveIsTerminalPayoff(t *testing.T) {
	m := market()
	set, err := evaluator().SweepTime(Single(straddle()), m, TimeAxis{Window: window(), Lines: 5})
	if err != nil {
		t.Fatalf("SweepTime: %v", err)
	}
	if len(set.Curves) != 5 {
		t.Fatalf("curves = %d, want 5", len(set.Curves))
	}
	if set.Curves[0].Param != m.TimeToExpiry {
		t.Errorf("first curve T = %v, want %v", set.Curves[0].Param, m.TimeToExpiry)
	}

	last := set.Curves[4]
	if last.Label != "Expiry" {
		t.Errorf("last label = %q", last.Label)
	}
	for j, s := range set.Spots {
		want := portfolio.ValuePnL(straddle(), m.WithSpot(s), true)
		if math.Abs(last.PnL[j]-want) > 1e-9 {
			t.Errorf("spot %v: pnl = %v, want payoff %v", s, last.PnL[j], want)
		}
	}
}

func TestSweepTime_SingleLineIsNow(t *testing.T) {
	m := market()
	set, err := evaluator().SweepTime(Single(straddle()), m, TimeAxis{Window: window(), Lines: 1})
	if err != nil {
		t.Fatalf("SweepTime: %v", err)
	}
	if len(set.Curves) != 1 || set.Curves[0].Param != m.TimeToExpiry {
		t.Fatalf("single line = %+v", set.Curves)
	}
}

func TestSweep_DiffIsAMinusB(t *testing.T) {
	m := market()
	e := evaluator()
	axis := TimeAxis{Window: window(), Lines: 3}

	a, err := e.SweepTime(Target{A: straddle(), B: shortCall(), Mode: ModeA}, m, axis)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.SweepTime(Target{A: straddle(), B: shortCall(), Mode: ModeB}, m, axis)
	if err != nil {
		t.Fatal(err)
	}
	diff, err := e.SweepTime(Compare(straddle(), shortCall()), m, axis)
	if err != nil {
		t.Fatal(err)
	}

	for i := range diff.Curves {
		for j := range diff.Spots {
			want := a.Curves[i].PnL[j] - b.Curves[i].PnL[j]
			if math.Abs(diff.Curves[i].PnL[j]-want) > 1e-9 {
				t.Fatalf("curve %d spot %d: diff = %v, want %v", i, j, diff.Curves[i].PnL[j], want)
			}
		}
	}
}

func TestSweepIntraday(t *testing.T) {
	m := market()
	axis := IntradayAxis{Window: window(), Lines: 3, SessionHours: 8, Gap: "0:16:0", HoursPerYear: HoursPerYear}
	set, err := evaluator().SweepIntraday(Single(straddle()), m, axis)
	if err != nil {
		t.Fatalf("SweepIntraday: %v", err)
	}

	wantT := []float64{24 / HoursPerYear, 20 / HoursPerYear, 16 / HoursPerYear}
	for i, c := range set.Curves {
		if math.Abs(c.Param-wantT[i]) > 1e-12 {
			t.Errorf("curve %d T = %v, want %v", i, c.Param, wantT[i])
		}
	}
}

func TestSweepIntraday_MalformedGapUsesDefault(t *testing.T) {
	m := market()
	e := evaluator()
	good := IntradayAxis{Window: window(), Lines: 2, SessionHours: 6, Gap: "0:16:0", HoursPerYear: HoursPerYear}
	bad := good
	bad.Gap = "sixteen hours"

	a, err := e.SweepIntraday(Single(straddle()), m, good)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.SweepIntraday(Single(straddle()), m, bad)
	if err != nil {
		t.Fatalf("malformed gap should not fail: %v", err)
	}
	for i := range a.Curves {
		if a.Curves[i].Param != b.Curves[i].Param {
			t.Errorf("curve %d: T = %v, want %v", i, b.Curves[i].Param, a.Curves[i].Param)
		}
	}
}

func TestSweepIntraday_ZeroTimeUsesPayoff(t *testing.T) {
	m := market()
	axis := IntradayAxis{Window: window(), Lines: 2, SessionHours: 4, Gap: "0:0:0", HoursPerYear: HoursPerYear}
	set, err := evaluator().SweepIntraday(Single(straddle()), m, axis)
	if err != nil {
		t.Fatal(err)
	}
	last := set.Curves[1]
	for j, s := range set.Spots {
		want := portfolio.ValuePnL(straddle(), m.WithSpot(s), true)
		if math.Abs(last.PnL[j]-want) > 1e-9 {
			t.Fatalf("spot %v: pnl = %v, want %v", s, last.PnL[j], want)
		}
	}
}

func TestSweepVolatility(t *testing.T) {
	m := market()
	set, err := evaluator().SweepVolatility(Single(straddle()), m, VolAxis{Window: window(), Lines: 3, Min: 0.1, Max: 0.3})
	if err != nil {
		t.Fatalf("SweepVolatility: %v", err)
	}
	if len(set.Curves) != 3 {
		t.Fatalf("curves = %d", len(set.Curves))
	}
	if set.Reference == nil || set.Reference.Param != m.Volatility {
		t.Fatalf("reference = %+v", set.Reference)
	}

	// A long straddle gains value with volatility at every spot.
	mid := len(set.Spots) / 2
	if !(set.Curves[0].PnL[mid] < set.Curves[1].PnL[mid] && set.Curves[1].PnL[mid] < set.Curves[2].PnL[mid]) {
		t.Errorf("straddle PnL not increasing in vol: %v %v %v",
			set.Curves[0].PnL[mid], set.Curves[1].PnL[mid], set.Curves[2].PnL[mid])
	}
}

func TestSurface_Dimensions(t *testing.T) {
	m := market()
	tests := []struct {
		name string
		axis SurfaceAxis
	}{
		{"time", SurfaceAxis{Window: SpotWindow{RangePct: 0.1, Steps: 30}, Kind: SurfaceTime, Steps: 20}},
		{"volatility", SurfaceAxis{Window: SpotWindow{RangePct: 0.1, Steps: 30}, Kind: SurfaceVolatility, Steps: 20, VolMin: 0.08, VolMax: 0.3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := evaluator().Surface(context.Background(), Single(straddle()), m, tt.axis)
			if err != nil {
				t.Fatalf("Surface: %v", err)
			}
			if len(s.X) != 30 || len(s.Y) != 20 || len(s.Z) != 20 {
				t.Fatalf("dims = %d x %d (rows %d)", len(s.X), len(s.Y), len(s.Z))
			}
			for i, row := range s.Z {
				if len(row) != 30 {
					t.Fatalf("row %d has %d cells", i, len(row))
				}
			}
		})
	}
}

func TestSurface_TimeLastRowIsPayoff(t *testing.T) {
	m := market()
	axis := SurfaceAxis{Window: window(), Kind: SurfaceTime, Steps: 4}
	s, err := evaluator().Surface(context.Background(), Single(straddle()), m, axis)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(s.Y[3]-30) > 1e-9 {
		t.Fatalf("last row days passed = %v, want 30", s.Y[3])
	}
	for j, x := range s.X {
		want := portfolio.ValuePnL(straddle(), m.WithSpot(x), true)
		if math.Abs(s.Z[3][j]-want) > 1e-9 {
			t.Fatalf("spot %v: %v, want %v", x, s.Z[3][j], want)
		}
	}
}

func TestSurface_ParallelMatchesSequential(t *testing.T) {
	m := market()
	axis := SurfaceAxis{Window: window(), Kind: SurfaceVolatility, Steps: 12, VolMin: 0.1, VolMax: 0.4}
	target := Compare(straddle(), shortCall())

	par, err := NewEvaluator(zerolog.Nop(), 8).Surface(context.Background(), target, m, axis)
	if err != nil {
		t.Fatal(err)
	}
	seq, err := NewEvaluator(zerolog.Nop(), 1).Surface(context.Background(), target, m, axis)
	if err != nil {
		t.Fatal(err)
	}
	for i := range seq.Z {
		for j := range seq.Z[i] {
			if par.Z[i][j] != seq.Z[i][j] {
				t.Fatalf("cell %d,%d: %v != %v", i, j, par.Z[i][j], seq.Z[i][j])
			}
		}
	}
}

func TestSurface_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	axis := SurfaceAxis{Window: window(), Kind: SurfaceTime, Steps: 10}
	if _, err := evaluator().Surface(ctx, Single(straddle()), market(), axis); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestSweep_Validation(t *testing.T) {
	e := evaluator()
	m := market()

	if _, err := e.SweepTime(Single(straddle()), m, TimeAxis{Window: SpotWindow{RangePct: 0, Steps: 10}, Lines: 3}); !apperrors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("zero range: err = %v", err)
	}
	if _, err := e.SweepTime(Target{A: straddle(), Mode: "both"}, m, TimeAxis{Window: window(), Lines: 3}); !apperrors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("bad mode: err = %v", err)
	}
	if _, err := e.SweepVolatility(Single(straddle()), m, VolAxis{Window: window(), Lines: 3, Min: 0.3, Max: 0.1}); !apperrors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("inverted vol range: err = %v", err)
	}
	if _, err := e.Surface(context.Background(), Single(straddle()), m, SurfaceAxis{Window: window(), Kind: "depth", Steps: 5}); !apperrors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("bad surface kind: err = %v", err)
	}
}

func TestParseGap(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"0:16:0", 16 * time.Hour, true},
		{"2:16:30", 64*time.Hour + 30*time.Minute, true},
		{" 0:0:45 ", 45 * time.Minute, true},
		{"16", DefaultGap, false},
		{"a:b:c", DefaultGap, false},
		{"0:-1:0", DefaultGap, false},
		{"", DefaultGap, false},
		{"3650:23:59", 3650*24*time.Hour + 23*time.Hour + 59*time.Minute, true},
		{"200000:0:0", DefaultGap, false},
		{"3651:0:0", DefaultGap, false},
		{"0:24:0", DefaultGap, false},
		{"0:0:60", DefaultGap, false},
		{"0:9999999999999:0", DefaultGap, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseGap(tt.in); got != tt.want {
				t.Errorf("ParseGap(%q) = %v, want %v", tt.in, got, tt.want)
			}
			_, err := ParseGapStrict(tt.in)
			if (err == nil) != tt.ok {
				t.Errorf("ParseGapStrict(%q) err = %v", tt.in, err)
			}
		})
	}
}

func TestSpotAxis(t *testing.T) {
	axis := SpotAxis(1000, 0.1, 5)
	want := []float64{900, 950, 1000, 1050, 1100}
	for i := range want {
		if math.Abs(axis[i]-want[i]) > 1e-9 {
			t.Errorf("axis[%d] = %v, want %v", i, axis[i], want[i])
		}
	}
}

// Property: a portfolio compared with itself has a zero diff everywhere.
func TestProperty_SelfDiffIsZero(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("A - A is zero", prop.ForAll(
		func(strike, vol float64) bool {
			legs := []models.OptionLeg{
				{Type: models.Call, Strike: strike, Quantity: 2, EntryPrice: 15},
				{Type: models.Put, Strike: strike, Quantity: -1, EntryPrice: 12},
			}
			m := market().WithVolatility(vol)
			set, err := evaluator().SweepTime(Compare(legs, legs), m, TimeAxis{Window: window(), Lines: 3})
			if err != nil {
				return false
			}
			for _, c := range set.Curves {
				for _, v := range c.PnL {
					if v != 0 {
						return false
					}
				}
			}
			return true
		},
		gen.Float64Range(900, 1100),
		gen.Float64Range(0.05, 0.6),
	))

	properties.TestingRun(t)
}
