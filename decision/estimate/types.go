// Package estimate is the Estimate Pricing & Settlement Engine.
// It prices suggested scope items against the catalog, folds them into trade,
// coverage and estimate totals, decides overhead and profit, and optionally
// hands the priced lines to a settlement calculator.
package estimate

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"claim-cost/decision/catalog"
	"claim-cost/decision/settlement"
)

// QuantitySource describes how a suggested quantity was derived
type QuantitySource string

const (
	SourceMeasured QuantitySource = "measured"
	SourceManual   QuantitySource = "manual"
	SourceInferred QuantitySource = "inferred"
	SourceDefault  QuantitySource = "default"
)

// Quantity is a suggested quantity with its provenance
type Quantity struct {
	Value  decimal.Decimal `json:"value"`
	Source QuantitySource  `json:"source"`
}

// SuggestedLineItem is a work item emitted by the scope engine
type SuggestedLineItem struct {
	Code         string               `json:"code"`
	Quantity     Quantity             `json:"quantity"`
	Reasons      []string             `json:"reasons,omitempty"`
	IsAutoAdded  bool                 `json:"is_auto_added"`
	CoverageCode catalog.CoverageCode `json:"coverage_code,omitempty"`
	ZoneID       string               `json:"zone_id,omitempty"`
	ZoneName     string               `json:"zone_name,omitempty"`
}

// ScopeResult is the scope engine output for one zone
type ScopeResult struct {
	ZoneID   string              `json:"zone_id,omitempty"`
	ZoneName string              `json:"zone_name,omitempty"`
	Items    []SuggestedLineItem `json:"items"`
}

// Config is the pricing configuration of a single request
type Config struct {
	RegionID  string  `json:"region_id"`
	CarrierID *string `json:"carrier_id,omitempty"`

	// OverheadPct and ProfitPct override the carrier percentages when set.
	OverheadPct *decimal.Decimal `json:"overhead_pct,omitempty"`
	ProfitPct   *decimal.Decimal `json:"profit_pct,omitempty"`

	// Deductibles engage the settlement step when non-empty.
	Deductibles settlement.Deductibles `json:"deductibles,omitempty"`
}

// BaseCosts are per-unit costs before waste and regional adjustment
type BaseCosts struct {
	Material  decimal.Decimal
	Labor     decimal.Decimal
	Equipment decimal.Decimal
}

// UnitPriceBreakdown shows how the unit price was built
type UnitPriceBreakdown struct {
	BaseMaterial      decimal.Decimal `json:"base_material"`
	BaseLabor         decimal.Decimal `json:"base_labor"`
	BaseEquipment     decimal.Decimal `json:"base_equipment"`
	WasteFactor       decimal.Decimal `json:"waste_factor"`
	AdjustedMaterial  decimal.Decimal `json:"adjusted_material"`
	AdjustedLabor     decimal.Decimal `json:"adjusted_labor"`
	AdjustedEquipment decimal.Decimal `json:"adjusted_equipment"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	MinimumCharge     decimal.Decimal `json:"minimum_charge"`
}

// PricedLineItem is one fully priced estimate line
type PricedLineItem struct {
	Code           string               `json:"code"`
	Description    string               `json:"description"`
	CategoryID     string               `json:"category_id"`
	Unit           string               `json:"unit"`
	Quantity       decimal.Decimal      `json:"quantity"`
	QuantitySource QuantitySource       `json:"quantity_source"`
	Reasons        []string             `json:"reasons,omitempty"`
	IsAutoAdded    bool                 `json:"is_auto_added"`
	ZoneID         string               `json:"zone_id,omitempty"`
	ZoneName       string               `json:"zone_name,omitempty"`
	CoverageCode   catalog.CoverageCode `json:"coverage_code"`
	TradeCode      string               `json:"trade_code,omitempty"`

	UnitPriceBreakdown UnitPriceBreakdown `json:"unit_price_breakdown"`

	TotalMaterial        decimal.Decimal `json:"total_material"`
	TotalLabor           decimal.Decimal `json:"total_labor"`
	TotalEquipment       decimal.Decimal `json:"total_equipment"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	MinimumChargeApplied bool            `json:"minimum_charge_applied"`
	TaxableAmount        decimal.Decimal `json:"taxable_amount"`
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	RCV                  decimal.Decimal `json:"rcv"`
}

// LineTotals are the summed cost dimensions of a group of lines
type LineTotals struct {
	ItemCount int             `json:"item_count"`
	Material  decimal.Decimal `json:"material"`
	Labor     decimal.Decimal `json:"labor"`
	Equipment decimal.Decimal `json:"equipment"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	RCV       decimal.Decimal `json:"rcv"`
}

// TradeTotals are the totals of one trade
type TradeTotals struct {
	TradeCode string `json:"trade_code"`
	LineTotals
	// OpEligible is reserved for per-trade eligibility and is always true.
	OpEligible bool `json:"op_eligible"`
}

// CoverageBreakdown are the totals of one coverage
type CoverageBreakdown struct {
	CoverageCode catalog.CoverageCode `json:"coverage_code"`
	LineTotals
}

// EstimateTotals are the estimate-wide sums
type EstimateTotals struct {
	SubtotalMaterial  decimal.Decimal `json:"subtotal_material"`
	SubtotalLabor     decimal.Decimal `json:"subtotal_labor"`
	SubtotalEquipment decimal.Decimal `json:"subtotal_equipment"`
	SubtotalBeforeTax decimal.Decimal `json:"subtotal_before_tax"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
	// TaxRate is a percentage, 7 for 7%.
	TaxRate          decimal.Decimal `json:"tax_rate"`
	SubtotalAfterTax decimal.Decimal `json:"subtotal_after_tax"`
	WasteIncluded    decimal.Decimal `json:"waste_included"`
}

// OverheadAndProfit is the O&P decision with the inputs that drove it
type OverheadAndProfit struct {
	Eligible       bool            `json:"eligible"`
	Reason         string          `json:"reason,omitempty"`
	Trades         []string        `json:"trades"`
	TradeMinimum   int             `json:"trade_minimum"`
	Threshold      decimal.Decimal `json:"threshold"`
	OverheadPct    decimal.Decimal `json:"overhead_pct"`
	ProfitPct      decimal.Decimal `json:"profit_pct"`
	OverheadAmount decimal.Decimal `json:"overhead_amount"`
	ProfitAmount   decimal.Decimal `json:"profit_amount"`
}

// ConfigSnapshot records the configuration a result was priced with
type ConfigSnapshot struct {
	RegionID     string    `json:"region_id"`
	CarrierID    *string   `json:"carrier_id,omitempty"`
	RegionKnown  bool      `json:"region_known"`
	CarrierKnown bool      `json:"carrier_known"`
	PricedAt     time.Time `json:"priced_at"`
}

// PricedEstimateResult is the complete output of a pricing request.
// Results may be shared through the engine cache and must not be modified.
type PricedEstimateResult struct {
	ID                uuid.UUID           `json:"id"`
	LineItems         []PricedLineItem    `json:"line_items"`
	Skipped           []Skip              `json:"skipped,omitempty"`
	TradeBreakdown    []TradeTotals       `json:"trade_breakdown"`
	CoverageBreakdown []CoverageBreakdown `json:"coverage_breakdown"`
	Totals            EstimateTotals      `json:"totals"`
	OverheadAndProfit OverheadAndProfit   `json:"overhead_and_profit"`
	RCVTotal          decimal.Decimal     `json:"rcv_total"`
	Config            ConfigSnapshot      `json:"config"`
	InputHash         string              `json:"input_hash"`
	Settlement        *settlement.Result  `json:"settlement,omitempty"`
}
