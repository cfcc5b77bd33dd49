// Package settlement applies depreciation and per-coverage deductibles to
// priced estimate lines and reports the net claim per coverage.
package settlement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is one priced estimate line as seen by the settlement calculator
type Line struct {
	CoverageCode string          `json:"coverage_code"`
	TradeCode    string          `json:"trade_code"`
	Material     decimal.Decimal `json:"material"`
	Labor        decimal.Decimal `json:"labor"`
	Equipment    decimal.Decimal `json:"equipment"`
	Tax          decimal.Decimal `json:"tax"`
	RCV          decimal.Decimal `json:"rcv"`
	Depreciation decimal.Decimal `json:"depreciation"`
}

// OPConfig carries the overhead/profit decision made by the estimate
type OPConfig struct {
	Eligible     bool            `json:"eligible"`
	OverheadPct  decimal.Decimal `json:"overhead_pct"`
	ProfitPct    decimal.Decimal `json:"profit_pct"`
	Threshold    decimal.Decimal `json:"threshold"`
	TradeMinimum int             `json:"trade_minimum"`
}

// Deductibles maps a coverage code to its deductible amount
type Deductibles map[string]decimal.Decimal

// CoverageSettlement is the settlement of a single coverage
type CoverageSettlement struct {
	CoverageCode      string          `json:"coverage_code"`
	LineCount         int             `json:"line_count"`
	RCV               decimal.Decimal `json:"rcv"`
	Depreciation      decimal.Decimal `json:"depreciation"`
	ACV               decimal.Decimal `json:"acv"`
	Overhead          decimal.Decimal `json:"overhead"`
	Profit            decimal.Decimal `json:"profit"`
	Deductible        decimal.Decimal `json:"deductible"`
	DeductibleApplied decimal.Decimal `json:"deductible_applied"`
	NetClaim          decimal.Decimal `json:"net_claim"`
}

// Result is the settlement across all coverages
type Result struct {
	Coverages         []CoverageSettlement `json:"coverages"`
	TotalRCV          decimal.Decimal      `json:"total_rcv"`
	TotalDepreciation decimal.Decimal      `json:"total_depreciation"`
	TotalACV          decimal.Decimal      `json:"total_acv"`
	TotalOverhead     decimal.Decimal      `json:"total_overhead"`
	TotalProfit       decimal.Decimal      `json:"total_profit"`
	TotalDeductible   decimal.Decimal      `json:"total_deductible"`
	NetClaim          decimal.Decimal      `json:"net_claim"`
	CalculatedAt      time.Time            `json:"calculated_at"`
}

// Calculator is the default deductible-aware settlement calculator
type Calculator struct {
	now func() time.Time
}

// NewCalculator creates a settlement calculator
func NewCalculator() *Calculator {
	return &Calculator{now: time.Now}
}

// WithClock overrides the clock used for CalculatedAt
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// CalculateSettlement groups lines by coverage, allocates overhead and profit
// per coverage when eligible, and applies each coverage's deductible to its
// ACV plus O&P share. Deductibles for coverages without lines are ignored.
func (c *Calculator) CalculateSettlement(ctx context.Context, lines []Line, op OPConfig, deductibles Deductibles) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for code, amount := range deductibles {
		if amount.IsNegative() {
			return nil, fmt.Errorf("deductible for coverage %s is negative: %s", code, amount)
		}
	}

	byCoverage := make(map[string]*CoverageSettlement)
	for _, line := range lines {
		if line.CoverageCode == "" {
			return nil, fmt.Errorf("settlement line has no coverage code")
		}
		cov, ok := byCoverage[line.CoverageCode]
		if !ok {
			cov = &CoverageSettlement{CoverageCode: line.CoverageCode}
			byCoverage[line.CoverageCode] = cov
		}
		cov.LineCount++
		cov.RCV = cov.RCV.Add(line.RCV)
		cov.Depreciation = cov.Depreciation.Add(line.Depreciation)
	}

	result := &Result{
		Coverages:    make([]CoverageSettlement, 0, len(byCoverage)),
		CalculatedAt: c.now().UTC(),
	}

	for _, cov := range byCoverage {
		cov.RCV = cov.RCV.Round(2)
		cov.Depreciation = cov.Depreciation.Round(2)
		cov.ACV = cov.RCV.Sub(cov.Depreciation)

		if op.Eligible {
			cov.Overhead = cov.RCV.Mul(op.OverheadPct).Div(hundred).Round(2)
			cov.Profit = cov.RCV.Mul(op.ProfitPct).Div(hundred).Round(2)
		}

		claimable := cov.ACV.Add(cov.Overhead).Add(cov.Profit)
		cov.Deductible = deductibles[cov.CoverageCode]
		cov.DeductibleApplied = decimal.Min(cov.Deductible, decimal.Max(claimable, decimal.Zero))
		cov.NetClaim = claimable.Sub(cov.DeductibleApplied)
		if cov.NetClaim.IsNegative() {
			cov.NetClaim = decimal.Zero
		}

		result.TotalRCV = result.TotalRCV.Add(cov.RCV)
		result.TotalDepreciation = result.TotalDepreciation.Add(cov.Depreciation)
		result.TotalACV = result.TotalACV.Add(cov.ACV)
		result.TotalOverhead = result.TotalOverhead.Add(cov.Overhead)
		result.TotalProfit = result.TotalProfit.Add(cov.Profit)
		result.TotalDeductible = result.TotalDeductible.Add(cov.DeductibleApplied)
		result.NetClaim = result.NetClaim.Add(cov.NetClaim)
		result.Coverages = append(result.Coverages, *cov)
	}

	sort.Slice(result.Coverages, func(i, j int) bool {
		return result.Coverages[i].CoverageCode < result.Coverages[j].CoverageCode
	})
	return result, nil
}
