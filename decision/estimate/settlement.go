package estimate

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"claim-cost/decision/settlement"
)

// ErrNoSettlementCalculator is returned when deductibles are supplied to an
// engine built without a settlement calculator
var ErrNoSettlementCalculator = errors.New("deductibles supplied but no settlement calculator configured")

// SettlementCalculator applies deductibles to priced lines
type SettlementCalculator interface {
	CalculateSettlement(ctx context.Context, lines []settlement.Line, op settlement.OPConfig, deductibles settlement.Deductibles) (*settlement.Result, error)
}

// SettlementLines converts priced lines to settlement lines. Depreciation is
// not computed here and is always zero.
func SettlementLines(items []PricedLineItem) []settlement.Line {
	lines := make([]settlement.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, settlement.Line{
			CoverageCode: string(item.CoverageCode),
			TradeCode:    TradeKey(item),
			Material:     item.TotalMaterial,
			Labor:        item.TotalLabor,
			Equipment:    item.TotalEquipment,
			Tax:          item.TaxAmount,
			RCV:          item.RCV,
			Depreciation: decimal.Zero,
		})
	}
	return lines
}

// settle runs the settlement step. It returns nil without calling the
// calculator when no deductibles were supplied.
func settle(ctx context.Context, calc SettlementCalculator, items []PricedLineItem, op OverheadAndProfit, deductibles settlement.Deductibles) (*settlement.Result, error) {
	if len(deductibles) == 0 {
		return nil, nil
	}
	if calc == nil {
		return nil, ErrNoSettlementCalculator
	}

	res, err := calc.CalculateSettlement(ctx, SettlementLines(items), settlement.OPConfig{
		Eligible:     op.Eligible,
		OverheadPct:  op.OverheadPct,
		ProfitPct:    op.ProfitPct,
		Threshold:    op.Threshold,
		TradeMinimum: op.TradeMinimum,
	}, deductibles)
	if err != nil {
		return nil, fmt.Errorf("settlement failed: %w", err)
	}
	return res, nil
}
