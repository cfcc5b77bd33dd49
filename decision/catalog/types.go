// Package catalog provides the Catalog & Rate Lookup seam.
// It defines line-item definitions, regional multipliers, tax rates and
// carrier overhead/profit rules, the Store contract that backs them, and the
// default values used when a region or carrier is unknown.
package catalog

import (
	"github.com/shopspring/decimal"
)

// CoverageCode identifies the policy section a line is billed against
type CoverageCode string

const (
	CoverageDwelling        CoverageCode = "A"
	CoverageOtherStructures CoverageCode = "B"
	CoverageContents        CoverageCode = "C"
	CoverageLossOfUse       CoverageCode = "D"
)

// Valid reports whether the code is one of the policy sections A-D
func (c CoverageCode) Valid() bool {
	switch c {
	case CoverageDwelling, CoverageOtherStructures, CoverageContents, CoverageLossOfUse:
		return true
	}
	return false
}

// Component is one entry of a material, labor or equipment component list.
// The pricing core treats component lists as opaque and hands them to the
// cost calculators.
type Component struct {
	Code              string                     `json:"code"`
	Description       string                     `json:"description,omitempty"`
	Quantity          decimal.Decimal            `json:"quantity"`
	Unit              string                     `json:"unit,omitempty"`
	UnitCost          decimal.Decimal            `json:"unit_cost"`
	RegionalUnitCosts map[string]decimal.Decimal `json:"regional_unit_costs,omitempty"`
}

// LineItemDefinition is a catalog entry keyed by code
type LineItemDefinition struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id"`
	Unit        string `json:"unit"`

	MaterialComponents  []Component `json:"material_components"`
	LaborComponents     []Component `json:"labor_components"`
	EquipmentComponents []Component `json:"equipment_components"`

	// WasteFactor multiplies material cost only. Values below 1 are read as 1.
	WasteFactor   decimal.Decimal `json:"waste_factor"`
	MinimumCharge decimal.Decimal `json:"minimum_charge"`

	DefaultCoverageCode CoverageCode `json:"default_coverage_code,omitempty"`
	TradeCode           string       `json:"trade_code,omitempty"`
	Active              bool         `json:"active"`
}

// EffectiveWasteFactor returns the waste factor clamped to at least 1.0
func (d LineItemDefinition) EffectiveWasteFactor() decimal.Decimal {
	if d.WasteFactor.LessThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return d.WasteFactor
}

// RegionalMultipliers scale base unit costs for a region
type RegionalMultipliers struct {
	Material  decimal.Decimal `json:"material"`
	Labor     decimal.Decimal `json:"labor"`
	Equipment decimal.Decimal `json:"equipment"`
}

// CarrierOpRules are a carrier's tax and overhead/profit rules
type CarrierOpRules struct {
	TaxOnMaterialsOnly bool            `json:"tax_on_materials_only"`
	OpThreshold        decimal.Decimal `json:"op_threshold"`
	OpTradeMinimum     int             `json:"op_trade_minimum"`
	OverheadPct        decimal.Decimal `json:"overhead_pct"`
	ProfitPct          decimal.Decimal `json:"profit_pct"`
}

// RegionRates groups the per-region rate data of a price list
type RegionRates struct {
	Multipliers RegionalMultipliers `json:"multipliers"`
	// TaxRate is a fraction, 0.07 for 7%.
	TaxRate decimal.Decimal `json:"tax_rate"`
}

// PriceList is the import/export document for a complete catalog
type PriceList struct {
	Name        string                    `json:"name"`
	Version     string                    `json:"version,omitempty"`
	Definitions []LineItemDefinition      `json:"definitions"`
	Regions     map[string]RegionRates    `json:"regions"`
	Carriers    map[string]CarrierOpRules `json:"carriers"`
}
