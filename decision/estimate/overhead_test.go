package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"claim-cost/decision/catalog"
)

func carrierRules() catalog.CarrierOpRules {
	return catalog.CarrierOpRules{
		OpThreshold:    d("1000"),
		OpTradeMinimum: 2,
		OverheadPct:    d("10"),
		ProfitPct:      d("10"),
	}
}

func TestDetermineOverheadAndProfit_BelowThreshold(t *testing.T) {
	op := DetermineOverheadAndProfit(d("950"), []string{"DRY", "PNT"}, carrierRules(), nil, nil)

	assert.False(t, op.Eligible)
	assert.True(t, op.OverheadAmount.IsZero())
	assert.True(t, op.ProfitAmount.IsZero())
	assert.Equal(t, []string{"DRY", "PNT"}, op.Trades)
	assert.Equal(t, 2, op.TradeMinimum)
	assertMoney(t, "1000", op.Threshold, "threshold")
	assert.Contains(t, op.Reason, "below threshold")
}

func TestDetermineOverheadAndProfit_Qualifies(t *testing.T) {
	op := DetermineOverheadAndProfit(d("1200"), []string{"DRY", "PNT"}, carrierRules(), nil, nil)

	assert.True(t, op.Eligible)
	assertMoney(t, "120", op.OverheadAmount, "overhead")
	assertMoney(t, "120", op.ProfitAmount, "profit")
	assert.Empty(t, op.Reason)

	rcv := RCVTotal(EstimateTotals{SubtotalAfterTax: d("1200")}, op)
	assertMoney(t, "1440", rcv, "rcv total")
}

func TestDetermineOverheadAndProfit_AllOrNothing(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		trades   []string
		eligible bool
	}{
		{"both met", "1000", []string{"DRY", "PNT"}, true},
		{"too few trades", "5000", []string{"DRY"}, false},
		{"under threshold", "999.99", []string{"DRY", "PNT", "GEN"}, false},
		{"neither", "10", []string{"GEN"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := DetermineOverheadAndProfit(d(tt.subtotal), tt.trades, carrierRules(), nil, nil)
			assert.Equal(t, tt.eligible, op.Eligible)
			if !tt.eligible {
				assert.True(t, op.OverheadAmount.IsZero())
				assert.True(t, op.ProfitAmount.IsZero())
				assert.NotEmpty(t, op.Reason)
			}
		})
	}
}

func TestDetermineOverheadAndProfit_Overrides(t *testing.T) {
	overhead, profit := d("15"), d("5")
	op := DetermineOverheadAndProfit(d("2000.10"), []string{"DRY", "PNT"}, carrierRules(), &overhead, &profit)

	assertMoney(t, "15", op.OverheadPct, "overhead pct")
	assertMoney(t, "5", op.ProfitPct, "profit pct")
	assertMoney(t, "300.02", op.OverheadAmount, "overhead")
	assertMoney(t, "100.01", op.ProfitAmount, "profit")
}

func TestDetermineOverheadAndProfit_DefaultRules(t *testing.T) {
	rules := catalog.DefaultCarrierOpRules()

	op := DetermineOverheadAndProfit(d("10"), []string{"DRY", "GEN"}, rules, nil, nil)
	assert.False(t, op.Eligible, "default trade minimum is three")

	op = DetermineOverheadAndProfit(d("10"), []string{"DRY", "GEN", "PNT"}, rules, nil, nil)
	assert.True(t, op.Eligible)
	assertMoney(t, "1", op.OverheadAmount, "overhead")
}
