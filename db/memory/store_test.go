package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claim-cost/decision/catalog"
)

func TestLoadFile(t *testing.T) {
	store, err := LoadFile("testdata/pricelist.json")
	require.NoError(t, err)

	name, version := store.Name()
	assert.Equal(t, "residential-sample", name)
	assert.Equal(t, "2026.03", version)
	assert.Equal(t, 4, store.Len())

	defs, err := store.GetDefinitions(context.Background(), []string{"DRY-HANG", "CLN-CONT", "MISSING"})
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, catalog.CoverageContents, defs["CLN-CONT"].DefaultCoverageCode)
	assert.True(t, defs["DRY-HANG"].MinimumCharge.Equal(decimal.NewFromInt(25)))
	assert.True(t, defs["DRY-HANG"].LaborComponents[0].RegionalUnitCosts["CA-SFO"].Equal(decimal.NewFromInt(32)))
}

func TestStore_RegionAndCarrier(t *testing.T) {
	store, err := LoadFile("testdata/pricelist.json")
	require.NoError(t, err)
	ctx := context.Background()

	mult, err := store.GetRegionalMultipliers(ctx, "CA-SFO")
	require.NoError(t, err)
	assert.Equal(t, "1.35", mult.Labor.String())

	rate, err := store.GetTaxRate(ctx, "TX-DAL")
	require.NoError(t, err)
	assert.Equal(t, "0.07", rate.String())

	_, err = store.GetTaxRate(ctx, "NOWHERE")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	rules, err := store.GetCarrierOpRules(ctx, "acme-mutual")
	require.NoError(t, err)
	assert.True(t, rules.TaxOnMaterialsOnly)
	assert.Equal(t, 2, rules.OpTradeMinimum)

	_, err = store.GetCarrierOpRules(ctx, "other")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestStore_Replace(t *testing.T) {
	store := NewStore(catalog.PriceList{Definitions: []catalog.LineItemDefinition{{Code: " A1 ", Active: true}}})
	defs, err := store.GetDefinitions(context.Background(), []string{"A1"})
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	store.Replace(catalog.PriceList{Name: "empty"})
	assert.Equal(t, 0, store.Len())
}

func TestParsePriceList_RejectsBlankCode(t *testing.T) {
	_, err := ParsePriceList([]byte(`{"definitions":[{"code":"  "}]}`))
	assert.Error(t, err)

	_, err = ParsePriceList([]byte(`not json`))
	assert.Error(t, err)
}

func TestStore_CancelledContext(t *testing.T) {
	store := NewStore(catalog.PriceList{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetDefinitions(ctx, []string{"X"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Ping(ctx), context.Canceled)
}
