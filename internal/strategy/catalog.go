package strategy

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "maof-analyst/internal/errors"
	"maof-analyst/internal/models"
)

// catalogFile is the YAML layout of a user strategy file:
//
//	strategies:
//	  - name: Jade Lizard
//	    legs:
//	      - {type: put, offset: -2, quantity: -1}
//	      - {type: call, offset: 1, quantity: -1}
//	      - {type: call, offset: 2, quantity: 1}
type catalogFile struct {
	Strategies []struct {
		Name string `yaml:"name"`
		Legs []struct {
			Type     string  `yaml:"type"`
			Offset   float64 `yaml:"offset"`
			Quantity int     `yaml:"quantity"`
		} `yaml:"legs"`
	} `yaml:"strategies"`
}

// ParseCatalog reads user templates from YAML.
func ParseCatalog(r io.Reader) ([]models.StrategyTemplate, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding strategy catalog: %w", err)
	}

	out := make([]models.StrategyTemplate, 0, len(f.Strategies))
	seen := make(map[string]bool, len(f.Strategies))
	for i, s := range f.Strategies {
		if s.Name == "" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("strategies[%d].name", i), s.Name, "must not be empty")
		}
		if seen[s.Name] {
			return nil, apperrors.NewValidationError(fmt.Sprintf("strategies[%d].name", i), s.Name, "duplicate name")
		}
		seen[s.Name] = true
		if len(s.Legs) == 0 {
			return nil, apperrors.NewValidationError(s.Name, 0, "strategy needs at least one leg")
		}

		t := models.StrategyTemplate{Name: s.Name, Legs: make([]models.TemplateLeg, 0, len(s.Legs))}
		for j, l := range s.Legs {
			typ, err := models.ParseOptionType(l.Type)
			if err != nil {
				return nil, apperrors.Wrapf(err, "%s leg %d", s.Name, j)
			}
			if l.Quantity == 0 {
				return nil, apperrors.NewValidationError(fmt.Sprintf("%s leg %d quantity", s.Name, j), 0, "must not be zero")
			}
			t.Legs = append(t.Legs, models.TemplateLeg{Type: typ, Offset: l.Offset, Quantity: l.Quantity})
		}
		out = append(out, t)
	}
	return out, nil
}

// LoadCatalogFile returns the built-in catalog extended with the templates
// in path. An empty path returns the built-in catalog.
func LoadCatalogFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading strategy catalog: %w", err)
	}
	extra, err := ParseCatalog(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewCatalog(extra...), nil
}
