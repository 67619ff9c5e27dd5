package strategy

import "maof-analyst/internal/models"

func call(offset float64, qty int) models.TemplateLeg {
	return models.TemplateLeg{Type: models.Call, Offset: offset, Quantity: qty}
}

func put(offset float64, qty int) models.TemplateLeg {
	return models.TemplateLeg{Type: models.Put, Offset: offset, Quantity: qty}
}

func tmpl(name string, legs ...models.TemplateLeg) models.StrategyTemplate {
	return models.StrategyTemplate{Name: name, Legs: legs}
}

// butterfly builds a 1/-2/1 (long) or -1/2/-1 (short) fly around center.
func butterfly(name string, typ models.OptionType, center float64, long bool) models.StrategyTemplate {
	wing, body := 1, -2
	if !long {
		wing, body = -1, 2
	}
	return tmpl(name,
		models.TemplateLeg{Type: typ, Offset: center - 1, Quantity: wing},
		models.TemplateLeg{Type: typ, Offset: center, Quantity: body},
		models.TemplateLeg{Type: typ, Offset: center + 1, Quantity: wing},
	)
}

// builtinTemplates are the canned strategies, offsets in strike intervals from ATM.
var builtinTemplates = []models.StrategyTemplate{
	// Bullish
	tmpl("Long Call", call(0, 1)),
	tmpl("Bull Call Spread", call(0, 1), call(2, -1)),
	tmpl("Bull Put Spread (ITM)", put(0, 1), put(2, -1)),
	butterfly("Short Call Butterfly (ITM)", models.Call, -2, false),
	butterfly("Short Put Butterfly (OTM)", models.Put, -2, false),
	tmpl("Ratio Call Spread", call(0, 1), call(2, -2)),
	tmpl("Long Synthetic", call(0, 1), put(0, -1)),
	tmpl("Short Put", put(-2, -1)),
	tmpl("Bull Call Spread (ITM)", call(-1, 1), call(0, -1)),
	butterfly("Long Put Butterfly (ITM)", models.Put, 2, true),
	butterfly("Long Call Butterfly (OTM)", models.Call, 2, true),

	// Neutral
	tmpl("Long Straddle", call(0, 1), put(0, 1)),
	tmpl("Long Strangle", call(1, 1), put(-1, 1)),
	butterfly("Short Butterfly", models.Call, 0, false),
	butterfly("Long Butterfly", models.Call, 0, true),
	tmpl("Iron Butterfly", put(0, -1), call(0, -1), put(-2, 1), call(2, 1)),
	tmpl("Iron Condor", put(-3, -1), call(3, -1), put(-6, 1), call(6, 1)),
	tmpl("Short Straddle", call(0, -1), put(0, -1)),
	tmpl("Short Strangle", call(1, -1), put(-1, -1)),
	tmpl("Ratio Vertical Spread", call(0, -1), call(1, 2)),
	butterfly("Long Butterfly (ATM)", models.Call, 0, true),

	// Bearish
	tmpl("Long Put", put(0, 1)),
	tmpl("Bear Put Spread", put(0, 1), put(-2, -1)),
	tmpl("Bear Call Spread (ITM)", call(0, 1), call(-2, -1)),
	butterfly("Short Call Butterfly (OTM)", models.Call, 2, false),
	butterfly("Short Put Butterfly (ITM)", models.Put, 2, false),
	tmpl("Ratio Put Spread", put(0, 1), put(-2, -2)),
	tmpl("Short Synthetic", call(0, -1), put(0, 1)),
	tmpl("Short Call", call(2, -1)),
	tmpl("Bear Put Spread (ITM)", put(1, 1), put(0, -1)),
	butterfly("Long Call Butterfly (ITM)", models.Call, -2, true),
	butterfly("Long Put Butterfly (OTM)", models.Put, -2, true),
}

// Group is one cell of the view x regime matrix.
type Group struct {
	View       models.MarketView `json:"view"`
	Regime     models.VolRegime  `json:"regime"`
	Strategies []string          `json:"strategies"`
}

var (
	views   = []models.MarketView{models.Bullish, models.Neutral, models.Bearish}
	regimes = []models.VolRegime{models.LowIV, models.MediumIV, models.HighIV}
)

var matrix = map[models.MarketView]map[models.VolRegime][]string{
	models.Bullish: {
		models.LowIV:    {"Long Call", "Bull Call Spread", "Bull Put Spread (ITM)", "Short Call Butterfly (ITM)", "Short Put Butterfly (OTM)"},
		models.MediumIV: {"Bull Call Spread", "Ratio Call Spread", "Long Synthetic"},
		models.HighIV:   {"Short Put", "Bull Call Spread (ITM)", "Long Put Butterfly (ITM)", "Long Call Butterfly (OTM)"},
	},
	models.Neutral: {
		models.LowIV:    {"Long Straddle", "Long Strangle", "Short Butterfly"},
		models.MediumIV: {"Long Butterfly", "Iron Butterfly"},
		models.HighIV:   {"Iron Condor", "Short Straddle", "Short Strangle", "Ratio Vertical Spread", "Long Butterfly (ATM)"},
	},
	models.Bearish: {
		models.LowIV:    {"Long Put", "Bear Put Spread", "Bear Call Spread (ITM)", "Short Call Butterfly (OTM)", "Short Put Butterfly (ITM)"},
		models.MediumIV: {"Bear Put Spread", "Ratio Put Spread", "Short Synthetic"},
		models.HighIV:   {"Short Call", "Bear Put Spread (ITM)", "Long Call Butterfly (ITM)", "Long Put Butterfly (OTM)"},
	},
}

// Matrix returns the presentation grouping of the built-in strategies,
// rows ordered Bullish, Neutral, Bearish and regimes Low, Medium, High.
func Matrix() []Group {
	groups := make([]Group, 0, len(views)*len(regimes))
	for _, v := range views {
		for _, r := range regimes {
			names := matrix[v][r]
			groups = append(groups, Group{
				View:       v,
				Regime:     r,
				Strategies: append([]string(nil), names...),
			})
		}
	}
	return groups
}
