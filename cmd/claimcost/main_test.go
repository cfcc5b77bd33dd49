package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claim-cost/db/memory"
	"claim-cost/decision/costcalc"
	"claim-cost/decision/estimate"
	"claim-cost/decision/settlement"
)

func TestParseScopes(t *testing.T) {
	t.Run("single scope", func(t *testing.T) {
		scopes, err := parseScopes([]byte(`{"zone_id": "k", "items": [{"code": "DRY-HANG", "quantity": {"value": "10"}}]}`))
		require.NoError(t, err)
		require.Len(t, scopes, 1)
		assert.Equal(t, "k", scopes[0].ZoneID)
		assert.Equal(t, "DRY-HANG", scopes[0].Items[0].Code)
	})

	t.Run("zone array", func(t *testing.T) {
		scopes, err := parseScopes([]byte("  \n[{\"zone_id\": \"a\", \"items\": []}, {\"zone_id\": \"b\", \"items\": []}]"))
		require.NoError(t, err)
		require.Len(t, scopes, 2)
		assert.Equal(t, "b", scopes[1].ZoneID)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := parseScopes([]byte(`{"items": [`))
		assert.Error(t, err)
	})
}

func TestParseDeductibles(t *testing.T) {
	got, err := parseDeductibles([]string{"A=500", " c = 250.50 "})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got["A"].Equal(decimal.NewFromInt(500)))
	assert.True(t, got["C"].Equal(decimal.RequireFromString("250.50")))

	none, err := parseDeductibles(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, bad := range []string{"A", "=100", "Z=100", "A=abc", "B=-1"} {
		_, err := parseDeductibles([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestBuildConfig(t *testing.T) {
	cfg, err := buildConfig("TX-DAL", "acme-mutual", "12.5", "", []string{"A=1000"})
	require.NoError(t, err)
	assert.Equal(t, "TX-DAL", cfg.RegionID)
	require.NotNil(t, cfg.CarrierID)
	assert.Equal(t, "acme-mutual", *cfg.CarrierID)
	require.NotNil(t, cfg.OverheadPct)
	assert.True(t, cfg.OverheadPct.Equal(decimal.RequireFromString("12.5")))
	assert.Nil(t, cfg.ProfitPct)
	assert.Len(t, cfg.Deductibles, 1)

	cfg, err = buildConfig("", "", "", "", nil)
	require.NoError(t, err)
	assert.Nil(t, cfg.CarrierID)

	_, err = buildConfig("TX-DAL", "", "ten", "", nil)
	assert.Error(t, err)
	_, err = buildConfig("TX-DAL", "", "", "-3", nil)
	assert.Error(t, err)
}

func TestWriteTable(t *testing.T) {
	store, err := memory.LoadFile("../../db/memory/testdata/pricelist.json")
	require.NoError(t, err)
	engine, err := estimate.NewEngine(estimate.EngineDeps{
		Store:      store,
		Costs:      costcalc.NewCalculator(),
		Settlement: settlement.NewCalculator(),
	})
	require.NoError(t, err)

	cfg, err := buildConfig("TX-DAL", "", "", "", []string{"A=500"})
	require.NoError(t, err)
	res, err := engine.PriceEstimate(context.Background(), []estimate.ScopeResult{{
		ZoneID: "k",
		Items: []estimate.SuggestedLineItem{
			{Code: "DRY-HANG", Quantity: estimate.Quantity{Value: decimal.NewFromInt(50), Source: estimate.SourceMeasured}},
			{Code: "MISSING", Quantity: estimate.Quantity{Value: decimal.NewFromInt(1)}},
		},
	}}, cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, res))
	out := buf.String()
	assert.Contains(t, out, "DRY-HANG")
	assert.Contains(t, out, "$1687.93")
	assert.Contains(t, out, "skipped MISSING")
	assert.Contains(t, out, "O&P not applied")
	assert.Contains(t, out, "NET CLAIM")
}

func TestWritePriceLists(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePriceLists(&buf, nil))
	assert.Contains(t, buf.String(), "No price lists imported")

	buf.Reset()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, writePriceLists(&buf, []priceListRow{
		{ID: "0b6f0c3e-0000-4000-8000-000000000001", Name: "residential-sample", Version: "2026.03", Hash: "abcdef0123456789abcdef", Items: 4, Active: true, CreatedAt: created},
	}))
	out := buf.String()
	assert.Contains(t, out, "residential-sample")
	assert.Contains(t, out, "abcdef0123456...")
	assert.Contains(t, out, "2026-03-01T12:00:00Z")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
