// Package strategy turns named multi-leg option strategy templates into
// concrete, unpriced legs anchored at the at-the-money strike.
package strategy

import (
	"math"
	"sort"

	apperrors "maof-analyst/internal/errors"
	"maof-analyst/internal/models"
)

// Catalog is a read-only set of strategy templates keyed by name.
type Catalog struct {
	templates map[string]models.StrategyTemplate
}

// NewCatalog returns a catalog holding the built-in templates plus extra.
// Extra templates with a built-in name replace the built-in one.
func NewCatalog(extra ...models.StrategyTemplate) *Catalog {
	c := &Catalog{templates: make(map[string]models.StrategyTemplate, len(builtinTemplates)+len(extra))}
	for _, t := range builtinTemplates {
		c.templates[t.Name] = t
	}
	for _, t := range extra {
		c.templates[t.Name] = t
	}
	return c
}

var defaultCatalog = NewCatalog()

// Default returns the catalog of built-in templates.
func Default() *Catalog {
	return defaultCatalog
}

// ATMStrike rounds spot to the nearest multiple of interval.
// Ties round to the even multiple.
func ATMStrike(spot, interval float64) float64 {
	return math.RoundToEven(spot/interval) * interval
}

// Lookup returns the named template or ErrUnknownTemplate.
func (c *Catalog) Lookup(name string) (models.StrategyTemplate, error) {
	t, ok := c.templates[name]
	if !ok {
		return models.StrategyTemplate{}, apperrors.Wrapf(apperrors.ErrUnknownTemplate, "%q", name)
	}
	return t, nil
}

// Names returns every template name, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.templates))
	for n := range c.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Generate returns unpriced legs for the named template.
// An unknown name, a non-positive spot or interval, or an anchor so low that a
// wing strike would not be positive, yields an empty list.
func (c *Catalog) Generate(name string, spot, interval float64) []models.OptionLeg {
	legs, err := c.Build(name, spot, interval)
	if err != nil {
		return []models.OptionLeg{}
	}
	return legs
}

// Build is the strict form of Generate. Every returned leg passes
// OptionLeg.Validate.
func (c *Catalog) Build(name string, spot, interval float64) ([]models.OptionLeg, error) {
	t, err := c.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !(spot > 0) || math.IsInf(spot, 0) {
		return nil, apperrors.NewValidationError("spot", spot, "must be positive")
	}
	if !(interval > 0) || math.IsInf(interval, 0) {
		return nil, apperrors.NewValidationError("strike_interval", interval, "must be positive")
	}
	legs := Expand(t, spot, interval)
	for i, leg := range legs {
		if err := leg.Validate(); err != nil {
			return nil, apperrors.Wrapf(err, "%s at spot %g interval %g: leg %d", name, spot, interval, i)
		}
	}
	return legs, nil
}

// Expand anchors a template at ATM for spot and interval.
func Expand(t models.StrategyTemplate, spot, interval float64) []models.OptionLeg {
	atm := ATMStrike(spot, interval)
	legs := make([]models.OptionLeg, 0, len(t.Legs))
	for _, tl := range t.Legs {
		legs = append(legs, models.OptionLeg{
			Type:     tl.Type,
			Strike:   atm + tl.Offset*interval,
			Quantity: tl.Quantity,
			Unpriced: true,
		})
	}
	return legs
}

// Generate expands a built-in template. See Catalog.Generate.
func Generate(name string, spot, interval float64) []models.OptionLeg {
	return defaultCatalog.Generate(name, spot, interval)
}

// Lookup finds a built-in template. See Catalog.Lookup.
func Lookup(name string) (models.StrategyTemplate, error) {
	return defaultCatalog.Lookup(name)
}
