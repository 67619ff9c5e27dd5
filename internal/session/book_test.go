package session

import (
	"context"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	apperrors "maof-analyst/internal/errors"
	"maof-analyst/internal/models"
)

func newBook(t *testing.T) *Book {
	t.Helper()
	b, err := Open(zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBook_AddRemoveClear(t *testing.T) {
	ctx := context.Background()
	b := newBook(t)

	legs := []models.OptionLeg{
		{Type: models.Call, Strike: 3700, Quantity: 1, EntryPrice: 65.8},
		{Type: models.Put, Strike: 3650, Quantity: -2, EntryPrice: 21.4},
		{Type: models.Call, Strike: 3800, Quantity: -1},
	}
	for _, leg := range legs {
		if err := b.AddLeg(ctx, "a", leg); err != nil {
			t.Fatalf("AddLeg: %v", err)
		}
	}

	got, err := b.Legs(ctx, PortfolioA)
	if err != nil {
		t.Fatalf("Legs: %v", err)
	}
	if !reflect.DeepEqual(got, legs) {
		t.Fatalf("legs = %+v, want %+v", got, legs)
	}

	removed, err := b.RemoveLeg(ctx, PortfolioA, 1)
	if err != nil {
		t.Fatalf("RemoveLeg: %v", err)
	}
	if removed != legs[1] {
		t.Errorf("removed = %+v, want %+v", removed, legs[1])
	}

	got, _ = b.Legs(ctx, PortfolioA)
	want := []models.OptionLeg{legs[0], legs[2]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("after remove = %+v, want %+v", got, want)
	}

	if _, err := b.RemoveLeg(ctx, PortfolioA, 5); !apperrors.Is(err, apperrors.ErrLegNotFound) {
		t.Errorf("out of range remove: err = %v", err)
	}

	if err := b.Clear(ctx, PortfolioA); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, _ = b.Legs(ctx, PortfolioA)
	if len(got) != 0 {
		t.Errorf("after clear = %+v", got)
	}
}

func TestBook_PortfoliosAreIndependent(t *testing.T) {
	ctx := context.Background()
	b := newBook(t)

	a := models.OptionLeg{Type: models.Call, Strike: 100, Quantity: 1}
	bl := models.OptionLeg{Type: models.Put, Strike: 90, Quantity: -1}
	if err := b.AddLeg(ctx, PortfolioA, a); err != nil {
		t.Fatal(err)
	}
	if err := b.AddLeg(ctx, PortfolioB, bl); err != nil {
		t.Fatal(err)
	}
	if err := b.Clear(ctx, PortfolioB); err != nil {
		t.Fatal(err)
	}

	p, err := b.Portfolio(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != PortfolioA || len(p.Legs) != 1 || p.Legs[0] != a {
		t.Errorf("portfolio A = %+v", p)
	}

	ids, err := b.IDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{PortfolioA}) {
		t.Errorf("ids = %v", ids)
	}
}

func TestBook_SetLegs(t *testing.T) {
	ctx := context.Background()
	b := newBook(t)

	if err := b.AddLeg(ctx, PortfolioB, models.OptionLeg{Type: models.Call, Strike: 1, Quantity: 1}); err != nil {
		t.Fatal(err)
	}
	condor := []models.OptionLeg{
		{Type: models.Put, Strike: 990, Quantity: -1},
		{Type: models.Call, Strike: 1010, Quantity: -1},
		{Type: models.Put, Strike: 970, Quantity: 1},
		{Type: models.Call, Strike: 1030, Quantity: 1},
	}
	if err := b.SetLegs(ctx, PortfolioB, condor); err != nil {
		t.Fatalf("SetLegs: %v", err)
	}
	got, _ := b.Legs(ctx, PortfolioB)
	if !reflect.DeepEqual(got, condor) {
		t.Errorf("legs = %+v", got)
	}

	bad := append([]models.OptionLeg{}, condor...)
	bad[2].Strike = 0
	if err := b.SetLegs(ctx, PortfolioB, bad); !apperrors.Is(err, apperrors.ErrInvalidLeg) {
		t.Errorf("invalid leg: err = %v", err)
	}
	got, _ = b.Legs(ctx, PortfolioB)
	if !reflect.DeepEqual(got, condor) {
		t.Errorf("failed replace changed the book: %+v", got)
	}
}

func TestBook_Rejects(t *testing.T) {
	ctx := context.Background()
	b := newBook(t)

	if err := b.AddLeg(ctx, "A", models.OptionLeg{Type: models.Call, Strike: -5, Quantity: 1}); err == nil {
		t.Error("expected error for negative strike")
	}
	if err := b.AddLeg(ctx, "  ", models.OptionLeg{Type: models.Call, Strike: 5, Quantity: 1}); !apperrors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("empty id: err = %v", err)
	}

	b.Close()
	if _, err := b.Legs(ctx, PortfolioA); !apperrors.Is(err, apperrors.ErrSessionClosed) {
		t.Errorf("closed book: err = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

// Property: legs read back from the book equal the legs added, in order.
func TestProperty_LegRoundTrip(t *testing.T) {
	b := newBook(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("added legs are returned unchanged", prop.ForAll(
		func(strikes []float64, long bool) bool {
			if err := b.Clear(ctx, PortfolioA); err != nil {
				return false
			}
			want := []models.OptionLeg{}
			for i, k := range strikes {
				qty := i + 1
				if !long {
					qty = -qty
				}
				typ := models.Call
				if i%2 == 1 {
					typ = models.Put
				}
				leg := models.OptionLeg{Type: typ, Strike: k, Quantity: qty, EntryPrice: k / 50}
				if err := b.AddLeg(ctx, PortfolioA, leg); err != nil {
					return false
				}
				want = append(want, leg)
			}
			got, err := b.Legs(ctx, PortfolioA)
			return err == nil && reflect.DeepEqual(got, want)
		},
		gen.SliceOfN(6, gen.Float64Range(100, 5000)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
