package portfolio

import (
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"maof-analyst/internal/models"
	"maof-analyst/internal/pricing"
	"maof-analyst/internal/strategy"
)

func indexMarket() models.MarketState {
	return models.MarketState{
		Spot:               3700,
		TimeToExpiry:       30.0 / 365,
		RiskFreeRate:       0.0425,
		Volatility:         0.14,
		ContractMultiplier: 100,
	}
}

func newTestAggregator() *Aggregator {
	return NewAggregator(zerolog.Nop())
}

func TestValuePnL_AtExpiry(t *testing.T) {
	legs := []models.OptionLeg{
		{Type: models.Call, Strike: 100, Quantity: 2, EntryPrice: 5},
		{Type: models.Put, Strike: 95, Quantity: -1, EntryPrice: 1.5},
	}
	m := models.MarketState{Spot: 110, TimeToExpiry: 0.1, RiskFreeRate: 0.01, Volatility: 0.2, ContractMultiplier: 10}

	// call: (10-5)*10*2 = 100, put: (0-1.5)*10*-1 = 15
	if got := ValuePnL(legs, m, true); math.Abs(got-115) > 1e-9 {
		t.Fatalf("ValuePnL = %v, want 115", got)
	}
}

func TestValuePnL_ModelPrice(t *testing.T) {
	m := indexMarket()
	leg := models.OptionLeg{Type: models.Call, Strike: 3700, Quantity: -2, EntryPrice: 60}

	q, err := pricing.PriceLeg(leg, m)
	if err != nil {
		t.Fatalf("PriceLeg: %v", err)
	}
	want := (q.Price - 60) * 100 * -2
	if got := ValuePnL([]models.OptionLeg{leg}, m, false); math.Abs(got-want) > 1e-9 {
		t.Fatalf("ValuePnL = %v, want %v", got, want)
	}
}

func TestValue_SkipsBadLegs(t *testing.T) {
	good := models.OptionLeg{Type: models.Call, Strike: 3700, Quantity: 1, EntryPrice: 50}
	legs := []models.OptionLeg{
		good,
		{Type: models.Put, Strike: 0, Quantity: 1, EntryPrice: 10},
		{Type: models.OptionType("Future"), Strike: 3700, Quantity: 1},
	}
	m := indexMarket()

	v := Value(legs, m, false)
	if len(v.Skipped) != 2 {
		t.Fatalf("expected 2 skipped legs, got %d", len(v.Skipped))
	}
	if v.Skipped[0].Index != 1 || v.Skipped[1].Index != 2 {
		t.Errorf("unexpected skipped indexes %d, %d", v.Skipped[0].Index, v.Skipped[1].Index)
	}
	if want := ValuePnL([]models.OptionLeg{good}, m, false); v.PnL != want {
		t.Errorf("PnL = %v, want %v from the good leg only", v.PnL, want)
	}
}

func TestValuePnL_ZeroVolDegradesOnlyModelBranch(t *testing.T) {
	legs := []models.OptionLeg{{Type: models.Call, Strike: 100, Quantity: 1, EntryPrice: 2}}
	m := models.MarketState{Spot: 110, TimeToExpiry: 0.1, Volatility: 0, ContractMultiplier: 1}

	if got := ValuePnL(legs, m, false); got != 0 {
		t.Errorf("zero vol leg should contribute zero, got %v", got)
	}
	if got := ValuePnL(legs, m, true); got != 8 {
		t.Errorf("expiry payoff = %v, want 8", got)
	}
}

func TestSnapshot_Aggregation(t *testing.T) {
	a := newTestAggregator()
	m := indexMarket()
	legs := []models.OptionLeg{
		{Type: models.Call, Strike: 3700, Quantity: -3, EntryPrice: 70},
		{Type: models.Put, Strike: 3650, Quantity: 2, EntryPrice: 30},
	}

	snap := a.Snapshot(legs, m)

	var want models.RiskSnapshot
	for _, l := range legs {
		q, err := pricing.PriceLeg(l, m)
		if err != nil {
			t.Fatalf("PriceLeg: %v", err)
		}
		qty := float64(l.Quantity)
		want.Cost += l.EntryPrice * 100 * qty
		want.PnL += (q.Price - l.EntryPrice) * 100 * qty
		want.Delta += q.Delta * 100 * qty
		want.Gamma += q.Gamma * 100 * qty
		want.Theta += q.Theta * 100 * qty
		want.Vega += q.Vega * 100 * qty
	}

	checks := []struct {
		name      string
		got, want float64
	}{
		{"cost", snap.Cost, want.Cost},
		{"pnl", snap.PnL, want.PnL},
		{"delta", snap.Delta, want.Delta},
		{"gamma", snap.Gamma, want.Gamma},
		{"theta", snap.Theta, want.Theta},
		{"vega", snap.Vega, want.Vega},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if snap.Cost != -15000 {
		t.Errorf("cost = %v, want -15000", snap.Cost)
	}
	if snap.SkippedLegs != 0 {
		t.Errorf("skipped = %d", snap.SkippedLegs)
	}
}

func TestSnapshot_LongButterflyIsCapped(t *testing.T) {
	a := newTestAggregator()
	m := indexMarket()
	legs := a.PriceLegs(strategy.Generate("Long Butterfly", m.Spot, 10), m)
	if len(legs) != 3 {
		t.Fatalf("expected 3 legs, got %d", len(legs))
	}

	snap := a.Snapshot(legs, m)
	if math.IsInf(snap.MaxProfit, 0) || math.IsInf(snap.MaxLoss, 0) {
		t.Fatalf("butterfly should be capped: profit=%v loss=%v", snap.MaxProfit, snap.MaxLoss)
	}
	if !snap.ProfitCapped() || !snap.LossCapped() {
		t.Fatal("capped helpers disagree")
	}
	if snap.MaxLoss >= 0 {
		t.Errorf("a debit butterfly should have a negative max loss, got %v", snap.MaxLoss)
	}
}

func TestSnapshot_NakedShortCallIsUnbounded(t *testing.T) {
	a := newTestAggregator()
	m := indexMarket()
	legs := []models.OptionLeg{{Type: models.Call, Strike: 3720, Quantity: -1, EntryPrice: 55}}

	snap := a.Snapshot(legs, m)
	if !math.IsInf(snap.MaxLoss, -1) {
		t.Fatalf("MaxLoss = %v, want -Inf", snap.MaxLoss)
	}
	if math.Abs(snap.MaxProfit-55*100) > 1e-9 {
		t.Errorf("MaxProfit = %v, want premium 5500", snap.MaxProfit)
	}
}

func TestSnapshot_LongCallUnlimitedProfit(t *testing.T) {
	a := newTestAggregator()
	m := indexMarket()
	legs := []models.OptionLeg{{Type: models.Call, Strike: 3700, Quantity: 1, EntryPrice: 66}}

	snap := a.Snapshot(legs, m)
	if !math.IsInf(snap.MaxProfit, 1) {
		t.Errorf("MaxProfit = %v, want +Inf", snap.MaxProfit)
	}
	if math.Abs(snap.MaxLoss+6600) > 1e-9 {
		t.Errorf("MaxLoss = %v, want -6600", snap.MaxLoss)
	}
}

func TestSnapshot_StraddleBreakevens(t *testing.T) {
	a := newTestAggregator()
	m := models.MarketState{Spot: 100, TimeToExpiry: 0.1, RiskFreeRate: 0.02, Volatility: 0.25, ContractMultiplier: 1}
	legs := []models.OptionLeg{
		{Type: models.Call, Strike: 100, Quantity: 1, EntryPrice: 5},
		{Type: models.Put, Strike: 100, Quantity: 1, EntryPrice: 5},
	}

	snap := a.Snapshot(legs, m)
	if len(snap.Breakevens) != 2 {
		t.Fatalf("expected 2 breakevens, got %v", snap.Breakevens)
	}
	if math.Abs(snap.Breakevens[0]-90) > 1e-6 || math.Abs(snap.Breakevens[1]-110) > 1e-6 {
		t.Errorf("breakevens = %v, want [90 110]", snap.Breakevens)
	}
	if !math.IsInf(snap.MaxProfit, 1) {
		t.Errorf("straddle profit should be unlimited, got %v", snap.MaxProfit)
	}
}

func TestSnapshot_DegradesInvalidLeg(t *testing.T) {
	a := newTestAggregator()
	m := indexMarket()
	good := models.OptionLeg{Type: models.Put, Strike: 3650, Quantity: 1, EntryPrice: 30}

	withBad := a.Snapshot([]models.OptionLeg{good, {Type: models.Call, Strike: -1, Quantity: 5, EntryPrice: 3}}, m)
	alone := a.Snapshot([]models.OptionLeg{good}, m)

	if withBad.SkippedLegs != 1 {
		t.Errorf("skipped = %d, want 1", withBad.SkippedLegs)
	}
	withBad.SkippedLegs = 0
	if !reflect.DeepEqual(withBad, alone) {
		t.Errorf("bad leg changed the snapshot:\n%+v\n%+v", withBad, alone)
	}
}

func TestSnapshot_Empty(t *testing.T) {
	snap := newTestAggregator().Snapshot(nil, indexMarket())
	if snap.Cost != 0 || snap.PnL != 0 || snap.MaxProfit != 0 || snap.MaxLoss != 0 || len(snap.Breakevens) != 0 {
		t.Errorf("empty portfolio snapshot = %+v", snap)
	}
}

func TestPriceLegs(t *testing.T) {
	a := newTestAggregator()
	m := indexMarket()
	legs := []models.OptionLeg{
		{Type: models.Call, Strike: 3700, Quantity: 1, Unpriced: true},
		{Type: models.Put, Strike: 3700, Quantity: -1, EntryPrice: 12.5},
		{Type: models.Put, Strike: 0, Quantity: 1, Unpriced: true},
		{Type: models.Call, Strike: 3750, Quantity: -1, EntryPrice: 0},
	}

	priced := a.PriceLegs(legs, m)
	if legs[0].EntryPrice != 0 || !legs[0].Unpriced {
		t.Fatal("PriceLegs mutated its input")
	}
	q, _ := pricing.PriceLeg(legs[0], m)
	if priced[0].EntryPrice != q.Price || priced[0].Unpriced {
		t.Errorf("leg 0 = %+v, want entry %v and priced", priced[0], q.Price)
	}
	if priced[1].EntryPrice != 12.5 {
		t.Errorf("existing entry price overwritten: %v", priced[1].EntryPrice)
	}
	if priced[2].EntryPrice != 0 || !priced[2].Unpriced {
		t.Errorf("invalid leg should stay unpriced: %+v", priced[2])
	}
	if priced[3].EntryPrice != 0 {
		t.Errorf("explicit zero entry overwritten: %v", priced[3].EntryPrice)
	}
}

func TestBounds_Threshold(t *testing.T) {
	m := models.MarketState{Spot: 100, ContractMultiplier: 2}
	// threshold = 0.5 * 100 * 2 = 100
	tests := []struct {
		name       string
		payoff     []float64
		wantProfit float64
		wantLoss   float64
	}{
		{"inside", []float64{-100, 40, 100}, 100, -100},
		{"right edge up", []float64{-10, 0, 101}, math.Inf(1), -10},
		{"left edge down", []float64{-101, 0, 5}, 5, math.Inf(-1)},
		{"both", []float64{150, -20, -150}, math.Inf(1), math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, l := Bounds(tt.payoff, m)
			if p != tt.wantProfit || l != tt.wantLoss {
				t.Errorf("Bounds = (%v, %v), want (%v, %v)", p, l, tt.wantProfit, tt.wantLoss)
			}
		})
	}
}

func TestLinspace(t *testing.T) {
	got := Linspace(0, 1, 5)
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Linspace = %v, want %v", got, want)
	}
	if len(Linspace(1, 2, 0)) != 0 {
		t.Error("n=0 should be empty")
	}
	if got := Linspace(3, 9, 1); len(got) != 1 || got[0] != 3 {
		t.Errorf("n=1 = %v", got)
	}
	scan := Linspace(0.1*3700, 3*3700, ScanSamples)
	if len(scan) != 100 || scan[0] != 370 || scan[99] != 11100 {
		t.Errorf("scan window = [%v..%v] len %d", scan[0], scan[len(scan)-1], len(scan))
	}
}

func TestProperty_SnapshotIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)
	a := newTestAggregator()
	names := strategy.Default().Names()

	properties.Property("identical inputs give identical snapshots", prop.ForAll(
		func(idx int, spot, vol, days float64) bool {
			m := models.MarketState{
				Spot:               spot,
				TimeToExpiry:       days / 365,
				RiskFreeRate:       0.04,
				Volatility:         vol,
				ContractMultiplier: 100,
			}
			legs := a.PriceLegs(strategy.Generate(names[idx], spot, 10), m)
			before := append([]models.OptionLeg(nil), legs...)

			first := a.Snapshot(legs, m)
			second := a.Snapshot(legs, m)
			return reflect.DeepEqual(first, second) && reflect.DeepEqual(before, legs)
		},
		gen.IntRange(0, len(names)-1),
		gen.Float64Range(500, 5000),
		gen.Float64Range(0.05, 0.6),
		gen.Float64Range(0, 90),
	))

	properties.TestingRun(t)
}
