// Package costcalc turns catalog component lists into base unit costs.
// Costs are returned before waste and regional multipliers are applied.
package costcalc

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"claim-cost/decision/catalog"
)

// Calculator sums quantity x unit cost over a component list
type Calculator struct{}

// NewCalculator creates a component cost calculator
func NewCalculator() *Calculator { return &Calculator{} }

// MaterialCost returns the base material cost per unit for a region
func (c *Calculator) MaterialCost(ctx context.Context, components []catalog.Component, regionID string) (decimal.Decimal, error) {
	return sum(ctx, components, regionID)
}

// LaborCost returns the base labor cost per unit for a region
func (c *Calculator) LaborCost(ctx context.Context, components []catalog.Component, regionID string) (decimal.Decimal, error) {
	return sum(ctx, components, regionID)
}

// EquipmentCost returns the base equipment cost per unit. Equipment is
// region-independent at this stage.
func (c *Calculator) EquipmentCost(ctx context.Context, components []catalog.Component) (decimal.Decimal, error) {
	return sum(ctx, components, "")
}

func sum(ctx context.Context, components []catalog.Component, regionID string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, comp := range components {
		cost := unitCost(comp, regionID)
		if comp.Quantity.IsNegative() {
			return decimal.Zero, fmt.Errorf("component %s: negative quantity %s", comp.Code, comp.Quantity)
		}
		if cost.IsNegative() {
			return decimal.Zero, fmt.Errorf("component %s: negative unit cost %s", comp.Code, cost)
		}
		total = total.Add(comp.Quantity.Mul(cost))
	}
	return total, nil
}

func unitCost(comp catalog.Component, regionID string) decimal.Decimal {
	if regionID != "" {
		if cost, ok := comp.RegionalUnitCosts[regionID]; ok {
			return cost
		}
	}
	return comp.UnitCost
}
