package main

import (
	"fmt"
	"io"
	"time"

	"claim-cost/decision/estimate"
)

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

const rule = "══════════════════════════════════════════════════════════════════════"

func writeTable(w io.Writer, res *estimate.PricedEstimateResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "╔%s╗\n", rule)
	fmt.Fprintf(w, "║  %-68s║\n", "ESTIMATE "+res.ID.String())
	fmt.Fprintf(w, "║  %-68s║\n", fmt.Sprintf("Region: %s (known: %t)", orDash(res.Config.RegionID), res.Config.RegionKnown))
	if res.Config.CarrierID != nil {
		fmt.Fprintf(w, "║  %-68s║\n", fmt.Sprintf("Carrier: %s (known: %t)", *res.Config.CarrierID, res.Config.CarrierKnown))
	}
	fmt.Fprintf(w, "╠%s╣\n", rule)

	fmt.Fprintf(w, "║  %-12s %-22s %8s %5s %16s ║\n", "CODE", "DESCRIPTION", "QTY", "COV", "RCV")
	for _, li := range res.LineItems {
		fmt.Fprintf(w, "║  %-12s %-22s %8s %5s %16s ║\n",
			truncate(li.Code, 12),
			truncate(li.Description, 22),
			li.Quantity.String(),
			string(li.CoverageCode),
			"$"+li.RCV.StringFixed(2))
	}
	for _, skip := range res.Skipped {
		fmt.Fprintf(w, "║  %-68s║\n", truncate(fmt.Sprintf("skipped %s: %s", skip.Code, skip.Reason), 68))
	}

	fmt.Fprintf(w, "╠%s╣\n", rule)
	fmt.Fprintf(w, "║  %-12s %6s %16s %16s %14s ║\n", "TRADE", "ITEMS", "SUBTOTAL", "TAX", "RCV")
	for _, t := range res.TradeBreakdown {
		fmt.Fprintf(w, "║  %-12s %6d %16s %16s %14s ║\n",
			truncate(t.TradeCode, 12), t.ItemCount,
			"$"+t.Subtotal.StringFixed(2), "$"+t.Tax.StringFixed(2), "$"+t.RCV.StringFixed(2))
	}
	fmt.Fprintf(w, "║  %-12s %6s %16s %16s %14s ║\n", "COVERAGE", "ITEMS", "SUBTOTAL", "TAX", "RCV")
	for _, cov := range res.CoverageBreakdown {
		fmt.Fprintf(w, "║  %-12s %6d %16s %16s %14s ║\n",
			string(cov.CoverageCode), cov.ItemCount,
			"$"+cov.Subtotal.StringFixed(2), "$"+cov.Tax.StringFixed(2), "$"+cov.RCV.StringFixed(2))
	}

	t := res.Totals
	fmt.Fprintf(w, "╠%s╣\n", rule)
	money(w, "Material", "$"+t.SubtotalMaterial.StringFixed(2))
	money(w, "Labor", "$"+t.SubtotalLabor.StringFixed(2))
	money(w, "Equipment", "$"+t.SubtotalEquipment.StringFixed(2))
	money(w, "Subtotal", "$"+t.SubtotalBeforeTax.StringFixed(2))
	money(w, fmt.Sprintf("Tax (%s%%)", t.TaxRate.String()), "$"+t.TaxAmount.StringFixed(2))
	money(w, "Subtotal after tax", "$"+t.SubtotalAfterTax.StringFixed(2))
	money(w, "Waste included", "$"+t.WasteIncluded.StringFixed(2))

	op := res.OverheadAndProfit
	if op.Eligible {
		money(w, fmt.Sprintf("Overhead (%s%%)", op.OverheadPct.String()), "$"+op.OverheadAmount.StringFixed(2))
		money(w, fmt.Sprintf("Profit (%s%%)", op.ProfitPct.String()), "$"+op.ProfitAmount.StringFixed(2))
	} else {
		fmt.Fprintf(w, "║  %-68s║\n", truncate("O&P not applied: "+op.Reason, 68))
	}
	money(w, "RCV TOTAL", "$"+res.RCVTotal.StringFixed(2))

	if s := res.Settlement; s != nil {
		fmt.Fprintf(w, "╠%s╣\n", rule)
		for _, cov := range s.Coverages {
			money(w, fmt.Sprintf("Coverage %s net", cov.CoverageCode), "$"+cov.NetClaim.StringFixed(2))
		}
		money(w, "NET CLAIM", "$"+s.NetClaim.StringFixed(2))
	}

	fmt.Fprintf(w, "╚%s╝\n", rule)
	return nil
}

func money(w io.Writer, label, amount string) {
	fmt.Fprintf(w, "║  %-40s %27s║\n", label, amount)
}

type priceListRow struct {
	ID        string
	Name      string
	Version   string
	Hash      string
	Items     int
	Active    bool
	CreatedAt time.Time
}

func writePriceLists(w io.Writer, rows []priceListRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No price lists imported")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-20s  %-10s  %-16s  %7s  %-6s  %s\n", "ID", "NAME", "VERSION", "HASH", "ITEMS", "ACTIVE", "CREATED")
	for _, r := range rows {
		active := ""
		if r.Active {
			active = "*"
		}
		fmt.Fprintf(w, "%-36s  %-20s  %-10s  %-16s  %7d  %-6s  %s\n",
			r.ID, truncate(r.Name, 20), truncate(r.Version, 10), truncate(r.Hash, 16),
			r.Items, active, r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
