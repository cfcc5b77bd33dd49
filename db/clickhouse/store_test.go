package clickhouse

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claim-cost/decision/catalog"
)

func TestSchemaStatements(t *testing.T) {
	stmts := SchemaStatements()
	require.Len(t, stmts, 4)
	for _, stmt := range stmts {
		assert.True(t, strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS"), stmt)
		assert.Contains(t, stmt, "ReplacingMergeTree(_version)")
	}
}

func TestComponentsEncoding(t *testing.T) {
	def := catalog.LineItemDefinition{
		Code: "DRY-HANG",
		MaterialComponents: []catalog.Component{
			{Code: "GYP-12", Quantity: decimalOf("1.5"), UnitCost: decimalOf("10.25")},
		},
	}

	material, labor, equipment, err := encodeComponents(def)
	require.NoError(t, err)
	assert.Equal(t, "[]", labor, "nil lists are stored as empty arrays")
	assert.Equal(t, "[]", equipment)

	var out catalog.LineItemDefinition
	require.NoError(t, decodeComponents(&out, material, labor, ""))
	require.Len(t, out.MaterialComponents, 1)
	assert.Equal(t, "GYP-12", out.MaterialComponents[0].Code)
	assert.Equal(t, "10.25", out.MaterialComponents[0].UnitCost.String())
	assert.Empty(t, out.LaborComponents)
	assert.Nil(t, out.EquipmentComponents)

	assert.Error(t, decodeComponents(&out, "{broken", "", ""))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "claimcost", cfg.Database)
	assert.Equal(t, uint8(1), boolToUInt8(true))
	assert.Equal(t, uint8(0), boolToUInt8(false))
}

func decimalOf(s string) decimal.Decimal { return decimal.RequireFromString(s) }
