package estimate

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"claim-cost/decision/catalog"
	claimerrors "claim-cost/pkg/errors"
)

// CostCalculator sums component costs for a region
type CostCalculator interface {
	MaterialCost(ctx context.Context, components []catalog.Component, regionID string) (decimal.Decimal, error)
	LaborCost(ctx context.Context, components []catalog.Component, regionID string) (decimal.Decimal, error)
	EquipmentCost(ctx context.Context, components []catalog.Component) (decimal.Decimal, error)
}

// SkipReason explains why a suggested item produced no priced line
type SkipReason string

const (
	SkipNotInCatalog SkipReason = claimerrors.ErrCodeItemNotInCatalog
)

// Skip records a suggested item that was left out of the estimate
type Skip struct {
	Code   string     `json:"code"`
	Reason SkipReason `json:"reason"`
}

// Outcome is the per-item pricing result. Exactly one of Priced and Skipped
// is set.
type Outcome struct {
	Item    SuggestedLineItem
	Priced  *PricedLineItem
	Skipped *Skip
}

// Pricer turns suggested items into priced lines
type Pricer struct {
	costs CostCalculator
}

// NewPricer creates a pricer backed by a component cost calculator
func NewPricer(costs CostCalculator) *Pricer {
	return &Pricer{costs: costs}
}

// Price prices one item against already resolved rates. An item whose code is
// not in rates.Definitions is skipped, not failed.
func (p *Pricer) Price(ctx context.Context, item SuggestedLineItem, rates *catalog.Rates, regionID string) (Outcome, error) {
	def, ok := rates.Definitions[strings.TrimSpace(item.Code)]
	if !ok {
		return Outcome{Item: item, Skipped: &Skip{Code: item.Code, Reason: SkipNotInCatalog}}, nil
	}

	base, err := p.baseCosts(ctx, def, regionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to cost %s: %w", item.Code, err)
	}

	priced := PriceLine(item, def, base, rates.Multipliers, rates.TaxRate, TaxBasisFor(rates.Carrier))
	return Outcome{Item: item, Priced: &priced}, nil
}

func (p *Pricer) baseCosts(ctx context.Context, def catalog.LineItemDefinition, regionID string) (BaseCosts, error) {
	material, err := p.costs.MaterialCost(ctx, def.MaterialComponents, regionID)
	if err != nil {
		return BaseCosts{}, err
	}
	labor, err := p.costs.LaborCost(ctx, def.LaborComponents, regionID)
	if err != nil {
		return BaseCosts{}, err
	}
	equipment, err := p.costs.EquipmentCost(ctx, def.EquipmentComponents)
	if err != nil {
		return BaseCosts{}, err
	}
	return BaseCosts{Material: material, Labor: labor, Equipment: equipment}, nil
}

// PriceLine is the pure pricing step for a single line.
//
// Waste applies to material only. The minimum charge is checked against the
// cent-rounded subtotal. When it applies, the three components are scaled
// proportionally and any rounding remainder is booked to material, so the
// components always sum to the reported subtotal.
func PriceLine(
	item SuggestedLineItem,
	def catalog.LineItemDefinition,
	base BaseCosts,
	mult catalog.RegionalMultipliers,
	taxRate decimal.Decimal,
	basis TaxBasis,
) PricedLineItem {
	waste := def.EffectiveWasteFactor()
	qty := item.Quantity.Value

	adjMaterial := base.Material.Mul(waste).Mul(mult.Material)
	adjLabor := base.Labor.Mul(mult.Labor)
	adjEquipment := base.Equipment.Mul(mult.Equipment)

	unitPrice := roundCents(roundCents(adjMaterial).Add(roundCents(adjLabor)).Add(roundCents(adjEquipment)))

	rawMaterial := adjMaterial.Mul(qty)
	rawLabor := adjLabor.Mul(qty)
	rawEquipment := adjEquipment.Mul(qty)

	totalMaterial := roundCents(rawMaterial)
	totalLabor := roundCents(rawLabor)
	totalEquipment := roundCents(rawEquipment)
	subtotal := totalMaterial.Add(totalLabor).Add(totalEquipment)

	minimum := def.MinimumCharge
	minimumApplied := false
	if minimum.IsPositive() {
		floor := minimumCents(minimum)
		if subtotal.LessThan(floor) {
			minimumApplied = true
			totalMaterial, totalLabor, totalEquipment = spreadMinimum(floor, rawMaterial, rawLabor, rawEquipment)
			subtotal = floor
		}
	}

	taxable := basis.Taxable(totalMaterial, subtotal)
	tax := roundCents(taxable.Mul(taxRate))
	rcv := roundCents(subtotal.Add(tax))

	return PricedLineItem{
		Code:           def.Code,
		Description:    def.Description,
		CategoryID:     def.CategoryID,
		Unit:           def.Unit,
		Quantity:       qty,
		QuantitySource: item.Quantity.Source,
		Reasons:        item.Reasons,
		IsAutoAdded:    item.IsAutoAdded,
		ZoneID:         item.ZoneID,
		ZoneName:       item.ZoneName,
		CoverageCode:   ResolveCoverage(item, def),
		TradeCode:      def.TradeCode,
		UnitPriceBreakdown: UnitPriceBreakdown{
			BaseMaterial:      base.Material,
			BaseLabor:         base.Labor,
			BaseEquipment:     base.Equipment,
			WasteFactor:       waste,
			AdjustedMaterial:  roundCents(adjMaterial),
			AdjustedLabor:     roundCents(adjLabor),
			AdjustedEquipment: roundCents(adjEquipment),
			UnitPrice:         unitPrice,
			MinimumCharge:     minimum,
		},
		TotalMaterial:        totalMaterial,
		TotalLabor:           totalLabor,
		TotalEquipment:       totalEquipment,
		Subtotal:             subtotal,
		MinimumChargeApplied: minimumApplied,
		TaxableAmount:        taxable,
		TaxAmount:            tax,
		RCV:                  rcv,
	}
}

// minimumCents is the minimum charge in whole cents, rounded up so a charge
// with sub-cent precision is never undercut.
func minimumCents(minimum decimal.Decimal) decimal.Decimal {
	floor := roundCents(minimum)
	if floor.LessThan(minimum) {
		floor = floor.Add(cent)
	}
	return floor
}

// spreadMinimum scales the raw components onto floor and returns them rounded
// to cents. The rounding remainder goes to material. A zero raw subtotal puts
// the whole floor into material.
func spreadMinimum(floor, material, labor, equipment decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	raw := material.Add(labor).Add(equipment)
	if raw.IsZero() {
		return floor, decimal.Zero, decimal.Zero
	}
	scale := floor.Div(raw)
	l := roundCents(labor.Mul(scale))
	e := roundCents(equipment.Mul(scale))
	m := floor.Sub(l).Sub(e)
	return m, l, e
}
