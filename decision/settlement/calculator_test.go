package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixedClock() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestCalculateSettlement_AppliesDeductiblePerCoverage(t *testing.T) {
	lines := []Line{
		{CoverageCode: "A", TradeCode: "DRY", RCV: d("900.00")},
		{CoverageCode: "A", TradeCode: "PNT", RCV: d("300.00")},
		{CoverageCode: "C", TradeCode: "CLN", RCV: d("150.00")},
	}
	op := OPConfig{Eligible: true, OverheadPct: d("10"), ProfitPct: d("10")}

	res, err := NewCalculator().WithClock(fixedClock).CalculateSettlement(context.Background(), lines, op, Deductibles{
		"A": d("1000"),
		"C": d("500"),
		"B": d("250"),
	})
	require.NoError(t, err)
	require.Len(t, res.Coverages, 2)

	a := res.Coverages[0]
	assert.Equal(t, "A", a.CoverageCode)
	assert.Equal(t, 2, a.LineCount)
	assert.Equal(t, "1200", a.RCV.String())
	assert.Equal(t, "120", a.Overhead.String())
	assert.Equal(t, "120", a.Profit.String())
	assert.Equal(t, "1000", a.DeductibleApplied.String())
	assert.Equal(t, "440", a.NetClaim.String())

	c := res.Coverages[1]
	assert.Equal(t, "C", c.CoverageCode)
	assert.Equal(t, "180", c.DeductibleApplied.String(), "deductible is capped at the claimable amount")
	assert.True(t, c.NetClaim.IsZero())

	assert.Equal(t, "440", res.NetClaim.String())
	assert.Equal(t, "1180", res.TotalDeductible.String())
	assert.Equal(t, fixedClock(), res.CalculatedAt)
}

func TestCalculateSettlement_IneligibleOPAddsNothing(t *testing.T) {
	res, err := NewCalculator().CalculateSettlement(context.Background(),
		[]Line{{CoverageCode: "A", RCV: d("500"), Depreciation: d("100")}},
		OPConfig{Eligible: false, OverheadPct: d("10"), ProfitPct: d("10")},
		Deductibles{"A": d("50")},
	)
	require.NoError(t, err)
	cov := res.Coverages[0]
	assert.True(t, cov.Overhead.IsZero())
	assert.True(t, cov.Profit.IsZero())
	assert.Equal(t, "400", cov.ACV.String())
	assert.Equal(t, "350", cov.NetClaim.String())
}

func TestCalculateSettlement_RejectsBadInput(t *testing.T) {
	calc := NewCalculator()

	_, err := calc.CalculateSettlement(context.Background(), nil, OPConfig{}, Deductibles{"A": d("-1")})
	assert.Error(t, err)

	_, err = calc.CalculateSettlement(context.Background(), []Line{{RCV: d("1")}}, OPConfig{}, nil)
	assert.Error(t, err)
}
