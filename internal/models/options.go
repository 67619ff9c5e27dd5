package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "maof-analyst/internal/errors"
)

// OptionType represents the right of an option contract.
type OptionType string

const (
	Call OptionType = "Call"
	Put  OptionType = "Put"
)

// ParseOptionType parses a user supplied option type.
// Accepts call/c/ce and put/p/pe in any case.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c", "ce":
		return Call, nil
	case "put", "p", "pe":
		return Put, nil
	}
	return "", apperrors.NewValidationError("type", s, "must be call or put")
}

// Valid reports whether t is one of the two option rights.
func (t OptionType) Valid() bool {
	return t == Call || t == Put
}

// OptionLeg represents one position of a multi-leg option portfolio.
// A positive quantity is long, a negative quantity is short.
// Unpriced marks a leg whose entry price is still to be set from the model;
// an explicit entry of 0 is a real price.
type OptionLeg struct {
	Type       OptionType `json:"type"`
	Strike     float64    `json:"strike"`
	Quantity   int        `json:"quantity"`
	EntryPrice float64    `json:"entry_price"`
	Unpriced   bool       `json:"unpriced,omitempty"`
}

// Validate checks the leg invariants. Errors match both ErrInvalidLeg and
// ErrInputValidation.
func (l OptionLeg) Validate() error {
	if !l.Type.Valid() {
		return invalidLeg(apperrors.NewValidationError("type", l.Type, "must be Call or Put"))
	}
	if math.IsNaN(l.Strike) || math.IsInf(l.Strike, 0) || l.Strike <= 0 {
		return invalidLeg(apperrors.NewValidationError("strike", l.Strike, "must be positive"))
	}
	if math.IsNaN(l.EntryPrice) || math.IsInf(l.EntryPrice, 0) {
		return invalidLeg(apperrors.NewValidationError("entry_price", l.EntryPrice, "must be finite"))
	}
	return nil
}

func invalidLeg(err error) error {
	return fmt.Errorf("%w: %w", apperrors.ErrInvalidLeg, err)
}

// IsLong returns true for long legs.
func (l OptionLeg) IsLong() bool {
	return l.Quantity > 0
}

func (l OptionLeg) String() string {
	side := "SHORT"
	if l.IsLong() {
		side = "LONG"
	}
	return fmt.Sprintf("%s %d %s %g @ %.2f", side, absInt(l.Quantity), l.Type, l.Strike, l.EntryPrice)
}

// ParseLeg parses a leg spec of the form type:strike:qty[:entry],
// for example "put:3650:-1:21.4". Without an entry price the leg is
// returned Unpriced.
func ParseLeg(spec string) (OptionLeg, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) < 3 || len(parts) > 4 {
		return OptionLeg{}, apperrors.NewValidationError("leg", spec, "expected type:strike:qty[:entry]")
	}

	typ, err := ParseOptionType(parts[0])
	if err != nil {
		return OptionLeg{}, err
	}
	strike, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return OptionLeg{}, apperrors.NewValidationError("strike", parts[1], "not a number")
	}
	qty, err := strconv.Atoi(parts[2])
	if err != nil {
		return OptionLeg{}, apperrors.NewValidationError("quantity", parts[2], "not an integer")
	}

	leg := OptionLeg{Type: typ, Strike: strike, Quantity: qty, Unpriced: len(parts) == 3}
	if len(parts) == 4 {
		leg.EntryPrice, err = strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return OptionLeg{}, apperrors.NewValidationError("entry_price", parts[3], "not a number")
		}
	}
	if err := leg.Validate(); err != nil {
		return OptionLeg{}, err
	}
	return leg, nil
}

// Portfolio is an ordered collection of legs with an identity such as "A" or "B".
// Order only matters for display.
type Portfolio struct {
	ID   string      `json:"id"`
	Legs []OptionLeg `json:"legs"`
}

// Clone returns a deep copy of the portfolio.
func (p Portfolio) Clone() Portfolio {
	legs := make([]OptionLeg, len(p.Legs))
	copy(legs, p.Legs)
	return Portfolio{ID: p.ID, Legs: legs}
}

// MarketState is the set of market inputs a valuation runs against.
// TimeToExpiry is in years.
type MarketState struct {
	Spot               float64 `json:"spot"`
	TimeToExpiry       float64 `json:"time_to_expiry"`
	RiskFreeRate       float64 `json:"risk_free_rate"`
	Volatility         float64 `json:"volatility"`
	ContractMultiplier float64 `json:"contract_multiplier"`
}

// Validate checks the market state invariants.
func (m MarketState) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"spot", m.Spot},
		{"time_to_expiry", m.TimeToExpiry},
		{"risk_free_rate", m.RiskFreeRate},
		{"volatility", m.Volatility},
		{"contract_multiplier", m.ContractMultiplier},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return apperrors.NewValidationError(f.name, f.v, "must be finite")
		}
	}
	if m.Spot <= 0 {
		return apperrors.NewValidationError("spot", m.Spot, "must be positive")
	}
	if m.TimeToExpiry < 0 {
		return apperrors.NewValidationError("time_to_expiry", m.TimeToExpiry, "must be non-negative")
	}
	if m.Volatility < 0 {
		return apperrors.NewValidationError("volatility", m.Volatility, "must be non-negative")
	}
	if m.ContractMultiplier <= 0 {
		return apperrors.NewValidationError("contract_multiplier", m.ContractMultiplier, "must be positive")
	}
	return nil
}

// WithSpot returns a copy of m with a different spot.
func (m MarketState) WithSpot(spot float64) MarketState {
	m.Spot = spot
	return m
}

// WithTime returns a copy of m with a different time to expiry.
func (m MarketState) WithTime(t float64) MarketState {
	m.TimeToExpiry = t
	return m
}

// WithVolatility returns a copy of m with a different volatility.
func (m MarketState) WithVolatility(vol float64) MarketState {
	m.Volatility = vol
	return m
}

// Quote is the closed-form value and sensitivities of a single option.
// Vega is per volatility point, Theta per calendar day.
type Quote struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// RiskSnapshot aggregates portfolio level risk for one market state.
// MaxProfit is +Inf and MaxLoss is -Inf when the payoff is not capped.
type RiskSnapshot struct {
	Cost        float64   `json:"cost"`
	PnL         float64   `json:"pnl"`
	Delta       float64   `json:"delta"`
	Gamma       float64   `json:"gamma"`
	Theta       float64   `json:"theta"`
	Vega        float64   `json:"vega"`
	MaxProfit   float64   `json:"max_profit"`
	MaxLoss     float64   `json:"max_loss"`
	Breakevens  []float64 `json:"breakevens"`
	SkippedLegs int       `json:"skipped_legs"`
}

// MarshalJSON renders unbounded extremes as strings since JSON has no infinity.
func (r RiskSnapshot) MarshalJSON() ([]byte, error) {
	type alias RiskSnapshot
	return json.Marshal(struct {
		alias
		MaxProfit interface{} `json:"max_profit"`
		MaxLoss   interface{} `json:"max_loss"`
	}{
		alias:     alias(r),
		MaxProfit: boundJSON(r.MaxProfit),
		MaxLoss:   boundJSON(r.MaxLoss),
	})
}

// ProfitCapped reports whether the maximum profit is finite.
func (r RiskSnapshot) ProfitCapped() bool {
	return !math.IsInf(r.MaxProfit, 1)
}

// LossCapped reports whether the maximum loss is finite.
func (r RiskSnapshot) LossCapped() bool {
	return !math.IsInf(r.MaxLoss, -1)
}

func boundJSON(v float64) interface{} {
	switch {
	case math.IsInf(v, 1):
		return "unlimited"
	case math.IsInf(v, -1):
		return "-unlimited"
	}
	return v
}

// MarketView is the directional view a strategy expresses.
type MarketView string

const (
	Bullish MarketView = "Bullish"
	Neutral MarketView = "Neutral"
	Bearish MarketView = "Bearish"
)

// VolRegime is the expected implied volatility regime for a strategy.
type VolRegime string

const (
	LowIV    VolRegime = "Low IV"
	MediumIV VolRegime = "Medium IV"
	HighIV   VolRegime = "High IV"
)

// TemplateLeg is one leg of a strategy template. Offset is measured in
// strike intervals from the at-the-money strike.
type TemplateLeg struct {
	Type     OptionType `json:"type" yaml:"type"`
	Offset   float64    `json:"offset" yaml:"offset"`
	Quantity int        `json:"quantity" yaml:"quantity"`
}

// StrategyTemplate is an immutable named recipe of legs around ATM.
type StrategyTemplate struct {
	Name string        `json:"name" yaml:"name"`
	Legs []TemplateLeg `json:"legs" yaml:"legs"`
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
