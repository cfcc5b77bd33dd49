package estimate

import (
	"github.com/shopspring/decimal"

	"claim-cost/decision/catalog"
)

var (
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -2)
)

// roundCents rounds half away from zero to two places. Every money value is
// finalized through here.
func roundCents(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// TaxBasis selects which part of a line is taxed
type TaxBasis int

const (
	TaxBasisFullSubtotal TaxBasis = iota
	TaxBasisMaterialsOnly
)

func (b TaxBasis) String() string {
	switch b {
	case TaxBasisMaterialsOnly:
		return "materials_only"
	default:
		return "full_subtotal"
	}
}

// TaxBasisFor returns the tax basis a carrier's rules call for
func TaxBasisFor(rules catalog.CarrierOpRules) TaxBasis {
	if rules.TaxOnMaterialsOnly {
		return TaxBasisMaterialsOnly
	}
	return TaxBasisFullSubtotal
}

// Taxable returns the taxable amount of a line
func (b TaxBasis) Taxable(totalMaterial, subtotal decimal.Decimal) decimal.Decimal {
	if b == TaxBasisMaterialsOnly {
		return totalMaterial
	}
	return subtotal
}

// ResolveCoverage picks the coverage code: the item's own, then the
// definition default, then coverage A.
func ResolveCoverage(item SuggestedLineItem, def catalog.LineItemDefinition) catalog.CoverageCode {
	if item.CoverageCode != "" {
		return item.CoverageCode
	}
	if def.DefaultCoverageCode != "" {
		return def.DefaultCoverageCode
	}
	return catalog.DefaultCoverageCode
}
