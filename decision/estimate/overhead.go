package estimate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"claim-cost/decision/catalog"
)

// DetermineOverheadAndProfit applies the carrier O&P rule. Both the trade
// count and the dollar threshold must be met; otherwise both amounts are zero
// but the inputs of the decision are still reported. Non-nil overheadPct and
// profitPct replace the carrier percentages.
func DetermineOverheadAndProfit(
	subtotalAfterTax decimal.Decimal,
	trades []string,
	rules catalog.CarrierOpRules,
	overheadPct, profitPct *decimal.Decimal,
) OverheadAndProfit {
	op := OverheadAndProfit{
		Trades:         append([]string{}, trades...),
		TradeMinimum:   rules.OpTradeMinimum,
		Threshold:      rules.OpThreshold,
		OverheadPct:    rules.OverheadPct,
		ProfitPct:      rules.ProfitPct,
		OverheadAmount: decimal.Zero,
		ProfitAmount:   decimal.Zero,
	}
	if overheadPct != nil {
		op.OverheadPct = *overheadPct
	}
	if profitPct != nil {
		op.ProfitPct = *profitPct
	}

	enoughTrades := len(op.Trades) >= op.TradeMinimum
	overThreshold := subtotalAfterTax.GreaterThanOrEqual(op.Threshold)

	switch {
	case !enoughTrades && !overThreshold:
		op.Reason = fmt.Sprintf("%d of %d required trades and subtotal %s below threshold %s",
			len(op.Trades), op.TradeMinimum, subtotalAfterTax.StringFixed(2), op.Threshold.StringFixed(2))
	case !enoughTrades:
		op.Reason = fmt.Sprintf("%d of %d required trades", len(op.Trades), op.TradeMinimum)
	case !overThreshold:
		op.Reason = fmt.Sprintf("subtotal %s below threshold %s",
			subtotalAfterTax.StringFixed(2), op.Threshold.StringFixed(2))
	default:
		op.Eligible = true
		op.OverheadAmount = roundCents(subtotalAfterTax.Mul(op.OverheadPct).Div(hundred))
		op.ProfitAmount = roundCents(subtotalAfterTax.Mul(op.ProfitPct).Div(hundred))
	}
	return op
}

// RCVTotal is the estimate replacement cost including O&P
func RCVTotal(totals EstimateTotals, op OverheadAndProfit) decimal.Decimal {
	return roundCents(totals.SubtotalAfterTax.Add(op.OverheadAmount).Add(op.ProfitAmount))
}
