package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"maof-analyst/internal/models"
)

// FormatMoney formats an amount with two decimals and thousands separators.
// Infinite amounts are shown as unlimited.
func FormatMoney(amount float64) string {
	switch {
	case math.IsInf(amount, 1):
		return "unlimited"
	case math.IsInf(amount, -1):
		return "-unlimited"
	case math.IsNaN(amount):
		return "n/a"
	}

	s := decimal.NewFromFloat(amount).Round(2).StringFixed(2)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	parts := strings.SplitN(s, ".", 2)

	result := groupThousands(parts[0]) + "." + parts[1]
	if negative && result != "0.00" {
		result = "-" + result
	}
	return result
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPnL formats P&L with sign.
func FormatPnL(pnl float64) string {
	formatted := FormatMoney(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatPrice formats an option or index price. Cheap options get four
// decimals.
func FormatPrice(price float64) string {
	places := int32(2)
	if math.Abs(price) < 10 {
		places = 4
	}
	return decimal.NewFromFloat(price).Round(places).StringFixed(places)
}

// FormatStrike formats a strike without trailing zeros.
func FormatStrike(strike float64) string {
	return decimal.NewFromFloat(strike).Round(4).String()
}

// FormatVol formats an annual volatility given as a fraction.
func FormatVol(vol float64) string {
	return fmt.Sprintf("%.2f%%", vol*100)
}

// FormatDays formats a year fraction as calendar days.
func FormatDays(years float64) string {
	return fmt.Sprintf("%.1fd", years*365)
}

// FormatGreeks formats option Greeks.
func FormatGreeks(delta, gamma, theta, vega float64) string {
	return fmt.Sprintf("Δ: %.4f  Γ: %.4f  Θ: %.4f  ν: %.4f", delta, gamma, theta, vega)
}

// FormatBreakevens joins breakeven spots, or "none".
func FormatBreakevens(spots []float64) string {
	if len(spots) == 0 {
		return "none"
	}
	parts := make([]string, len(spots))
	for i, s := range spots {
		parts[i] = FormatMoney(s)
	}
	return strings.Join(parts, ", ")
}

// FormatQuantity formats a signed contract count.
func FormatQuantity(qty int) string {
	if qty > 0 {
		return fmt.Sprintf("+%d", qty)
	}
	return fmt.Sprintf("%d", qty)
}

// FormatLegSpec renders a leg in the type:strike:qty[:entry] form accepted
// by --leg and the session editor. Unpriced legs omit the entry.
func FormatLegSpec(leg models.OptionLeg) string {
	spec := fmt.Sprintf("%s:%s:%d", strings.ToLower(string(leg.Type)), FormatStrike(leg.Strike), leg.Quantity)
	if leg.Unpriced {
		return spec
	}
	return spec + ":" + FormatPrice(leg.EntryPrice)
}
