// Package portfolio aggregates leg level option values into portfolio PnL,
// Greeks and terminal payoff bounds.
//
// A leg that cannot be valued (invalid fields, or a pricing domain error)
// contributes zero instead of failing the whole portfolio.
package portfolio

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	apperrors "maof-analyst/internal/errors"
	"maof-analyst/internal/metrics"
	"maof-analyst/internal/models"
	"maof-analyst/internal/pricing"
)

const (
	// ContractScale is the per-contract convention applied to delta and gamma.
	ContractScale = 100.0

	// ScanSamples is the number of spots in the terminal payoff scan.
	ScanSamples = 100
	// ScanLow and ScanHigh bound the scan as multiples of spot.
	ScanLow  = 0.1
	ScanHigh = 3.0
	// UnboundedFactor marks a bound unlimited when the payoff at either end
	// of the scan exceeds UnboundedFactor * spot * multiplier in magnitude.
	UnboundedFactor = 0.5
)

// Aggregator values portfolios. It holds no mutable state.
type Aggregator struct {
	logger zerolog.Logger
}

// NewAggregator creates an Aggregator that logs degraded legs to logger.
func NewAggregator(logger zerolog.Logger) *Aggregator {
	return &Aggregator{logger: logger.With().Str("component", "portfolio").Logger()}
}

// Valuation is a portfolio PnL together with the legs that were skipped.
type Valuation struct {
	PnL     float64
	Skipped []*apperrors.LegError
}

// legValue returns the per-unit value of leg, either the model price or the
// terminal payoff when atExpiry is set.
func legValue(leg models.OptionLeg, m models.MarketState, atExpiry bool) (float64, error) {
	if err := leg.Validate(); err != nil {
		return 0, err
	}
	if atExpiry {
		return pricing.Intrinsic(m.Spot, leg.Strike, leg.Type), nil
	}
	q, err := pricing.PriceLeg(leg, m)
	if err != nil {
		return 0, err
	}
	return q.Price, nil
}

// Value computes Σ (value·mult − entry·mult)·qty across legs and reports
// which legs were skipped.
func Value(legs []models.OptionLeg, m models.MarketState, atExpiry bool) Valuation {
	var v Valuation
	for i, leg := range legs {
		val, err := legValue(leg, m, atExpiry)
		if err != nil {
			v.Skipped = append(v.Skipped, apperrors.NewLegError("", i, err))
			continue
		}
		v.PnL += (val - leg.EntryPrice) * m.ContractMultiplier * float64(leg.Quantity)
	}
	return v
}

// ValuePnL returns the portfolio PnL for one market state. Legs that cannot
// be valued contribute zero.
func ValuePnL(legs []models.OptionLeg, m models.MarketState, atExpiry bool) float64 {
	return Value(legs, m, atExpiry).PnL
}

// ValuePnL is the Aggregator form of ValuePnL; skipped legs are logged.
func (a *Aggregator) ValuePnL(legs []models.OptionLeg, m models.MarketState, atExpiry bool) float64 {
	v := Value(legs, m, atExpiry)
	for _, le := range v.Skipped {
		a.reportSkip(le)
	}
	return v.PnL
}

// Snapshot computes cost, PnL, Greeks, payoff bounds and breakevens for legs.
func (a *Aggregator) Snapshot(legs []models.OptionLeg, m models.MarketState) models.RiskSnapshot {
	var snap models.RiskSnapshot
	mult := m.ContractMultiplier

	for i, leg := range legs {
		err := leg.Validate()
		var q models.Quote
		if err == nil {
			q, err = pricing.PriceLeg(leg, m)
		}
		if err != nil {
			snap.SkippedLegs++
			a.reportSkip(apperrors.NewLegError("", i, err))
			continue
		}

		qty := float64(leg.Quantity)
		snap.Cost += leg.EntryPrice * mult * qty
		snap.PnL += (q.Price - leg.EntryPrice) * mult * qty
		snap.Delta += q.Delta * ContractScale * qty
		snap.Gamma += q.Gamma * ContractScale * qty
		snap.Theta += q.Theta * mult * qty
		snap.Vega += q.Vega * mult * qty
	}

	spots, payoff := PayoffScan(legs, m, ScanLow*m.Spot, ScanHigh*m.Spot, ScanSamples)
	snap.MaxProfit, snap.MaxLoss = Bounds(payoff, m)
	snap.Breakevens = Breakevens(spots, payoff)

	metrics.Snapshots.Inc()
	a.logger.Debug().
		Int("legs", len(legs)).
		Int("skipped", snap.SkippedLegs).
		Float64("pnl", snap.PnL).
		Float64("delta", snap.Delta).
		Msg("Risk snapshot")

	return snap
}

// PriceLegs returns a copy of legs where every valid Unpriced leg is seeded
// with its model price at m. Legs carrying an entry price, including 0, are
// left alone.
func (a *Aggregator) PriceLegs(legs []models.OptionLeg, m models.MarketState) []models.OptionLeg {
	out := make([]models.OptionLeg, len(legs))
	copy(out, legs)
	for i := range out {
		if !out[i].Unpriced {
			continue
		}
		val, err := legValue(out[i], m, false)
		if err != nil {
			a.reportSkip(apperrors.NewLegError("", i, err))
			continue
		}
		out[i].EntryPrice = val
		out[i].Unpriced = false
	}
	return out
}

// PayoffScan evaluates the terminal PnL at n evenly spaced spots in [lo, hi].
func PayoffScan(legs []models.OptionLeg, m models.MarketState, lo, hi float64, n int) (spots, pnl []float64) {
	spots = Linspace(lo, hi, n)
	pnl = make([]float64, len(spots))
	for i, s := range spots {
		pnl[i] = ValuePnL(legs, m.WithSpot(s), true)
	}
	return spots, pnl
}

// Bounds returns the max profit and max loss of a scanned payoff, replacing
// either with an infinity when the payoff at a scan boundary is beyond
// UnboundedFactor·spot·multiplier.
func Bounds(payoff []float64, m models.MarketState) (maxProfit, maxLoss float64) {
	if len(payoff) == 0 {
		return 0, 0
	}

	maxProfit, maxLoss = floats.Max(payoff), floats.Min(payoff)

	threshold := UnboundedFactor * m.Spot * m.ContractMultiplier
	for _, edge := range []float64{payoff[0], payoff[len(payoff)-1]} {
		if edge > threshold {
			maxProfit = math.Inf(1)
		}
		if edge < -threshold {
			maxLoss = math.Inf(-1)
		}
	}
	return maxProfit, maxLoss
}

// Breakevens locates sign changes of pnl by linear interpolation.
func Breakevens(spots, pnl []float64) []float64 {
	out := []float64{}
	for i := 1; i < len(spots) && i < len(pnl); i++ {
		y0, y1 := pnl[i-1], pnl[i]
		if (y0 < 0 && y1 >= 0) || (y0 > 0 && y1 <= 0) {
			x0, x1 := spots[i-1], spots[i]
			out = append(out, x0+(x1-x0)*(-y0)/(y1-y0))
		}
	}
	return out
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{lo}
	}
	out := floats.Span(make([]float64, n), lo, hi)
	out[n-1] = hi
	return out
}

func (a *Aggregator) reportSkip(le *apperrors.LegError) {
	reason := "invalid_leg"
	if apperrors.Is(le, apperrors.ErrDomain) {
		reason = "domain"
	}
	metrics.LegsSkipped.WithLabelValues(reason).Inc()
	a.logger.Debug().Err(le).Str("reason", reason).Int("leg", le.Index).Msg("Leg skipped")
}
