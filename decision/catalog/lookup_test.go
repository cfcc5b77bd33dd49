package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	getDefinitionsFunc func(ctx context.Context, codes []string) (map[string]LineItemDefinition, error)
	multipliersFunc    func(ctx context.Context, regionID string) (RegionalMultipliers, error)
	taxRateFunc        func(ctx context.Context, regionID string) (decimal.Decimal, error)
	carrierFunc        func(ctx context.Context, carrierID string) (CarrierOpRules, error)
	definitionCalls    int
	carrierCalls       int
}

func (f *fakeStore) GetDefinitions(ctx context.Context, codes []string) (map[string]LineItemDefinition, error) {
	f.definitionCalls++
	if f.getDefinitionsFunc != nil {
		return f.getDefinitionsFunc(ctx, codes)
	}
	return map[string]LineItemDefinition{}, nil
}

func (f *fakeStore) GetRegionalMultipliers(ctx context.Context, regionID string) (RegionalMultipliers, error) {
	if f.multipliersFunc != nil {
		return f.multipliersFunc(ctx, regionID)
	}
	return RegionalMultipliers{}, ErrNotFound
}

func (f *fakeStore) GetTaxRate(ctx context.Context, regionID string) (decimal.Decimal, error) {
	if f.taxRateFunc != nil {
		return f.taxRateFunc(ctx, regionID)
	}
	return decimal.Zero, ErrNotFound
}

func (f *fakeStore) GetCarrierOpRules(ctx context.Context, carrierID string) (CarrierOpRules, error) {
	f.carrierCalls++
	if f.carrierFunc != nil {
		return f.carrierFunc(ctx, carrierID)
	}
	return CarrierOpRules{}, ErrNotFound
}

func TestLookup_DefinitionsBatchesUniqueCodes(t *testing.T) {
	var seen []string
	store := &fakeStore{
		getDefinitionsFunc: func(_ context.Context, codes []string) (map[string]LineItemDefinition, error) {
			seen = codes
			return map[string]LineItemDefinition{
				"DRY-12": {Code: "DRY-12", Active: true},
				"OLD-1":  {Code: "OLD-1", Active: false},
			}, nil
		},
	}

	defs, err := NewLookup(store).Definitions(context.Background(), []string{"DRY-12", " DRY-12 ", "OLD-1", "", "PNT-2"})
	require.NoError(t, err)

	assert.Equal(t, 1, store.definitionCalls)
	assert.Equal(t, []string{"DRY-12", "OLD-1", "PNT-2"}, seen)
	assert.Contains(t, defs, "DRY-12")
	assert.NotContains(t, defs, "OLD-1", "inactive definitions are dropped")
	assert.NotContains(t, defs, "PNT-2")
}

func TestLookup_DefinitionsSkipsStoreForEmptyInput(t *testing.T) {
	store := &fakeStore{}
	defs, err := NewLookup(store).Definitions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, defs)
	assert.Zero(t, store.definitionCalls)
}

func TestLookup_UnknownRegionFallsBackToIdentity(t *testing.T) {
	lookup := NewLookup(&fakeStore{})

	mult, err := lookup.RegionalMultipliers(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.True(t, mult.Material.Equal(decimal.NewFromInt(1)))
	assert.True(t, mult.Labor.Equal(decimal.NewFromInt(1)))
	assert.True(t, mult.Equipment.Equal(decimal.NewFromInt(1)))

	rate, err := lookup.TaxRate(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.True(t, rate.Equal(DefaultTaxRate))
}

func TestLookup_NilCarrierUsesDefaultsWithoutStoreCall(t *testing.T) {
	store := &fakeStore{}
	rules, err := NewLookup(store).CarrierOpRules(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultCarrierOpRules(), rules)
	assert.Equal(t, DefaultOpTradeMinimum, rules.OpTradeMinimum)
	assert.True(t, rules.OverheadPct.Equal(DefaultOverheadPct))
	assert.Zero(t, store.carrierCalls)
}

func TestLookup_UnknownCarrierUsesDefaults(t *testing.T) {
	carrier := "acme-mutual"
	rules, err := NewLookup(&fakeStore{}).CarrierOpRules(context.Background(), &carrier)
	require.NoError(t, err)
	assert.Equal(t, DefaultCarrierOpRules(), rules)
}

func TestLookup_InfrastructureFailuresAreFatal(t *testing.T) {
	boom := errors.New("connection refused")
	carrier := "acme"

	tests := []struct {
		name  string
		store *fakeStore
	}{
		{
			name: "definitions",
			store: &fakeStore{getDefinitionsFunc: func(context.Context, []string) (map[string]LineItemDefinition, error) {
				return nil, boom
			}},
		},
		{
			name: "multipliers",
			store: &fakeStore{multipliersFunc: func(context.Context, string) (RegionalMultipliers, error) {
				return RegionalMultipliers{}, boom
			}},
		},
		{
			name: "tax rate",
			store: &fakeStore{taxRateFunc: func(context.Context, string) (decimal.Decimal, error) {
				return decimal.Zero, boom
			}},
		},
		{
			name: "carrier",
			store: &fakeStore{carrierFunc: func(context.Context, string) (CarrierOpRules, error) {
				return CarrierOpRules{}, boom
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLookup(tt.store).Resolve(context.Background(), []string{"X"}, "tx-austin", &carrier)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestLookup_ResolveReportsKnownRegionAndCarrier(t *testing.T) {
	carrier := "acme"
	store := &fakeStore{
		multipliersFunc: func(context.Context, string) (RegionalMultipliers, error) {
			return RegionalMultipliers{
				Material:  decimal.RequireFromString("1.05"),
				Labor:     decimal.NewFromInt(1),
				Equipment: decimal.NewFromInt(1),
			}, nil
		},
		taxRateFunc: func(context.Context, string) (decimal.Decimal, error) {
			return decimal.RequireFromString("0.07"), nil
		},
		carrierFunc: func(context.Context, string) (CarrierOpRules, error) {
			return CarrierOpRules{TaxOnMaterialsOnly: true, OpTradeMinimum: 2}, nil
		},
	}

	rates, err := NewLookup(store).Resolve(context.Background(), nil, "tx-austin", &carrier)
	require.NoError(t, err)
	assert.True(t, rates.RegionKnown)
	assert.True(t, rates.CarrierKnown)
	assert.Equal(t, "0.07", rates.TaxRate.String())
	assert.True(t, rates.Carrier.TaxOnMaterialsOnly)
}

func TestLineItemDefinition_EffectiveWasteFactor(t *testing.T) {
	assert.Equal(t, "1", LineItemDefinition{}.EffectiveWasteFactor().String())
	assert.Equal(t, "1.1", LineItemDefinition{WasteFactor: decimal.RequireFromString("1.1")}.EffectiveWasteFactor().String())
}

func TestCoverageCode_Valid(t *testing.T) {
	for _, c := range []CoverageCode{"A", "B", "C", "D"} {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, CoverageCode("E").Valid())
	assert.False(t, CoverageCode("").Valid())
}
