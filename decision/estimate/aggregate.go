package estimate

import (
	"sort"

	"github.com/shopspring/decimal"

	"claim-cost/decision/catalog"
)

// Breakdown is the aggregated view of a set of priced lines
type Breakdown struct {
	Trades    []TradeTotals
	Coverages []CoverageBreakdown
	Totals    EstimateTotals
}

// TradeKey returns the grouping key of a line's trade
func TradeKey(item PricedLineItem) string {
	if item.TradeCode == "" {
		return catalog.DefaultTradeCode
	}
	return item.TradeCode
}

// Aggregate groups priced lines by trade and by coverage and computes the
// estimate totals. taxRate is a fraction and is reported as a percentage.
// Subtotals are the sum of the rounded material, labor and equipment totals.
// Groups are sorted by key so the output does not depend on input order.
func Aggregate(items []PricedLineItem, taxRate decimal.Decimal) Breakdown {
	trades := make(map[string]*LineTotals)
	coverages := make(map[catalog.CoverageCode]*LineTotals)

	var totals EstimateTotals
	for _, item := range items {
		tk := TradeKey(item)
		if trades[tk] == nil {
			trades[tk] = &LineTotals{}
		}
		trades[tk].add(item)

		if coverages[item.CoverageCode] == nil {
			coverages[item.CoverageCode] = &LineTotals{}
		}
		coverages[item.CoverageCode].add(item)

		totals.SubtotalMaterial = totals.SubtotalMaterial.Add(item.TotalMaterial)
		totals.SubtotalLabor = totals.SubtotalLabor.Add(item.TotalLabor)
		totals.SubtotalEquipment = totals.SubtotalEquipment.Add(item.TotalEquipment)
		totals.TaxAmount = totals.TaxAmount.Add(item.TaxAmount)

		waste := item.UnitPriceBreakdown.WasteFactor.Sub(decimal.NewFromInt(1))
		if waste.IsPositive() {
			totals.WasteIncluded = totals.WasteIncluded.Add(item.TotalMaterial.Mul(waste))
		}
	}

	totals.SubtotalMaterial = roundCents(totals.SubtotalMaterial)
	totals.SubtotalLabor = roundCents(totals.SubtotalLabor)
	totals.SubtotalEquipment = roundCents(totals.SubtotalEquipment)
	totals.SubtotalBeforeTax = totals.SubtotalMaterial.Add(totals.SubtotalLabor).Add(totals.SubtotalEquipment)
	totals.TaxAmount = roundCents(totals.TaxAmount)
	totals.TaxRate = taxRate.Mul(hundred)
	totals.SubtotalAfterTax = roundCents(totals.SubtotalBeforeTax.Add(totals.TaxAmount))
	totals.WasteIncluded = roundCents(totals.WasteIncluded)

	out := Breakdown{
		Trades:    make([]TradeTotals, 0, len(trades)),
		Coverages: make([]CoverageBreakdown, 0, len(coverages)),
		Totals:    totals,
	}
	for code, t := range trades {
		out.Trades = append(out.Trades, TradeTotals{TradeCode: code, LineTotals: t.rounded(), OpEligible: true})
	}
	for code, t := range coverages {
		out.Coverages = append(out.Coverages, CoverageBreakdown{CoverageCode: code, LineTotals: t.rounded()})
	}
	sort.Slice(out.Trades, func(i, j int) bool { return out.Trades[i].TradeCode < out.Trades[j].TradeCode })
	sort.Slice(out.Coverages, func(i, j int) bool { return out.Coverages[i].CoverageCode < out.Coverages[j].CoverageCode })
	return out
}

// TradeCodes returns the sorted trade keys of a breakdown
func (b Breakdown) TradeCodes() []string {
	codes := make([]string, 0, len(b.Trades))
	for _, t := range b.Trades {
		codes = append(codes, t.TradeCode)
	}
	return codes
}

func (t *LineTotals) add(item PricedLineItem) {
	t.ItemCount++
	t.Material = t.Material.Add(item.TotalMaterial)
	t.Labor = t.Labor.Add(item.TotalLabor)
	t.Equipment = t.Equipment.Add(item.TotalEquipment)
	t.Tax = t.Tax.Add(item.TaxAmount)
	t.RCV = t.RCV.Add(item.RCV)
}

func (t *LineTotals) rounded() LineTotals {
	out := LineTotals{
		ItemCount: t.ItemCount,
		Material:  roundCents(t.Material),
		Labor:     roundCents(t.Labor),
		Equipment: roundCents(t.Equipment),
		Tax:       roundCents(t.Tax),
		RCV:       roundCents(t.RCV),
	}
	out.Subtotal = out.Material.Add(out.Labor).Add(out.Equipment)
	return out
}
