// Package pricing values single European options with the closed-form
// lognormal model and its first and second order sensitivities.
package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	apperrors "maof-analyst/internal/errors"
	"maof-analyst/internal/models"
)

// MinTimeToExpiry is the floor applied to time to expiry before the
// closed-form branch is used outside of explicit expiry valuation.
const MinTimeToExpiry = 1e-5

// DaysPerYear converts annual theta to calendar-day decay.
const DaysPerYear = 365.0

// VegaScale expresses vega per one volatility point.
const VegaScale = 100.0

var unitNormal = distuv.UnitNormal

// ClampTime floors t at MinTimeToExpiry.
func ClampTime(t float64) float64 {
	if t < MinTimeToExpiry {
		return MinTimeToExpiry
	}
	return t
}

// Intrinsic returns the exercise value of an option at spot.
func Intrinsic(spot, strike float64, typ models.OptionType) float64 {
	if typ == models.Call {
		return math.Max(spot-strike, 0)
	}
	return math.Max(strike-spot, 0)
}

// PriceOption returns price, delta, gamma, theta and vega for one option.
//
// A non-positive t is the terminal branch: the intrinsic value with all
// sensitivities zero. Otherwise strike, spot and volatility must be positive
// or a *errors.DomainError is returned.
func PriceOption(spot, strike, t, rate, vol float64, typ models.OptionType) (models.Quote, error) {
	const op = "price_option"

	if !typ.Valid() {
		return models.Quote{}, apperrors.NewDomainError(op, "type", math.NaN(), "unknown option type "+string(typ))
	}
	for _, in := range []struct {
		name string
		v    float64
	}{{"spot", spot}, {"strike", strike}, {"time", t}, {"rate", rate}, {"volatility", vol}} {
		if math.IsNaN(in.v) || math.IsInf(in.v, 0) {
			return models.Quote{}, apperrors.NewDomainError(op, in.name, in.v, "must be finite")
		}
	}
	if strike <= 0 {
		return models.Quote{}, apperrors.NewDomainError(op, "strike", strike, "must be positive")
	}

	if t <= 0 {
		return models.Quote{Price: Intrinsic(spot, strike, typ)}, nil
	}

	if spot <= 0 {
		return models.Quote{}, apperrors.NewDomainError(op, "spot", spot, "must be positive")
	}
	if vol <= 0 {
		return models.Quote{}, apperrors.NewDomainError(op, "volatility", vol, "must be positive")
	}

	sqrtT := math.Sqrt(t)
	volSqrtT := vol * sqrtT
	d1 := (math.Log(spot/strike) + (rate+0.5*vol*vol)*t) / volSqrtT
	d2 := d1 - volSqrtT

	discount := strike * math.Exp(-rate*t)
	pdf := unitNormal.Prob(d1)

	q := models.Quote{
		Gamma: pdf / (spot * volSqrtT),
		Vega:  spot * pdf * sqrtT / VegaScale,
	}

	decay := -spot * pdf * vol / (2 * sqrtT)
	if typ == models.Call {
		q.Price = spot*unitNormal.CDF(d1) - discount*unitNormal.CDF(d2)
		q.Delta = unitNormal.CDF(d1)
		q.Theta = (decay - rate*discount*unitNormal.CDF(d2)) / DaysPerYear
	} else {
		q.Price = discount*unitNormal.CDF(-d2) - spot*unitNormal.CDF(-d1)
		q.Delta = -unitNormal.CDF(-d1)
		q.Theta = (decay - rate*discount*unitNormal.CDF(-d2)) / DaysPerYear
	}

	return q, nil
}

// PriceLeg prices a leg against a market state on the closed-form branch,
// clamping time to expiry at MinTimeToExpiry.
func PriceLeg(leg models.OptionLeg, m models.MarketState) (models.Quote, error) {
	return PriceOption(m.Spot, leg.Strike, ClampTime(m.TimeToExpiry), m.RiskFreeRate, m.Volatility, leg.Type)
}
