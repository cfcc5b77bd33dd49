// Package postgres provides a PostgreSQL implementation of catalog.Store.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"claim-cost/decision/catalog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dialect = "postgres"

// PriceList is a stored price list header
type PriceList struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Source    string    `json:"source"`
	Hash      string    `json:"hash"`
	ItemCount int       `json:"item_count"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Store implements catalog.Store on PostgreSQL
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL using a lib/pq DSN
func Open(dsn string) (*Store, error) {
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate runs all pending embedded migrations
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}
	return nil
}

const activePriceList = `(SELECT id FROM price_lists WHERE is_active LIMIT 1)`

// GetDefinitions fetches all requested codes from the active price list in one query
func (s *Store) GetDefinitions(ctx context.Context, codes []string) (map[string]catalog.LineItemDefinition, error) {
	out := make(map[string]catalog.LineItemDefinition, len(codes))
	if len(codes) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, description, category_id, unit,
		       material_components, labor_components, equipment_components,
		       waste_factor, minimum_charge, default_coverage_code, trade_code, active
		FROM line_item_definitions
		WHERE price_list_id = `+activePriceList+` AND code = ANY($1)
	`, pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var def catalog.LineItemDefinition
		var material, labor, equipment []byte
		var coverage string
		if err := rows.Scan(
			&def.Code, &def.Description, &def.CategoryID, &def.Unit,
			&material, &labor, &equipment,
			&def.WasteFactor, &def.MinimumCharge, &coverage, &def.TradeCode, &def.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		if err := decodeComponents(&def, material, labor, equipment); err != nil {
			return nil, fmt.Errorf("definition %s: %w", def.Code, err)
		}
		def.DefaultCoverageCode = catalog.CoverageCode(coverage)
		out[def.Code] = def
	}
	return out, rows.Err()
}

func (s *Store) GetRegionalMultipliers(ctx context.Context, regionID string) (catalog.RegionalMultipliers, error) {
	var m catalog.RegionalMultipliers
	err := s.db.QueryRowContext(ctx, `
		SELECT material_mult, labor_mult, equipment_mult
		FROM regional_rates
		WHERE price_list_id = `+activePriceList+` AND region_id = $1
	`, regionID).Scan(&m.Material, &m.Labor, &m.Equipment)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.RegionalMultipliers{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.RegionalMultipliers{}, fmt.Errorf("failed to get regional multipliers: %w", err)
	}
	return m, nil
}

func (s *Store) GetTaxRate(ctx context.Context, regionID string) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT tax_rate
		FROM regional_rates
		WHERE price_list_id = `+activePriceList+` AND region_id = $1
	`, regionID).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, catalog.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get tax rate: %w", err)
	}
	return rate, nil
}

func (s *Store) GetCarrierOpRules(ctx context.Context, carrierID string) (catalog.CarrierOpRules, error) {
	var rules catalog.CarrierOpRules
	err := s.db.QueryRowContext(ctx, `
		SELECT tax_on_materials_only, op_threshold, op_trade_minimum, overhead_pct, profit_pct
		FROM carrier_op_rules
		WHERE price_list_id = `+activePriceList+` AND carrier_id = $1
	`, carrierID).Scan(&rules.TaxOnMaterialsOnly, &rules.OpThreshold, &rules.OpTradeMinimum, &rules.OverheadPct, &rules.ProfitPct)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.CarrierOpRules{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.CarrierOpRules{}, fmt.Errorf("failed to get carrier rules: %w", err)
	}
	return rules, nil
}

// FindPriceListByHash returns the price list with the given content hash, or nil
func (s *Store) FindPriceListByHash(ctx context.Context, hash string) (*PriceList, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, version, source, hash, item_count, is_active, created_at
		FROM price_lists WHERE hash = $1
	`, hash)
	var pl PriceList
	err := row.Scan(&pl.ID, &pl.Name, &pl.Version, &pl.Source, &pl.Hash, &pl.ItemCount, &pl.IsActive, &pl.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find price list: %w", err)
	}
	return &pl, nil
}

// ListPriceLists returns all price lists, newest first
func (s *Store) ListPriceLists(ctx context.Context) ([]*PriceList, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, version, source, hash, item_count, is_active, created_at
		FROM price_lists ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list price lists: %w", err)
	}
	defer rows.Close()

	var out []*PriceList
	for rows.Next() {
		var pl PriceList
		if err := rows.Scan(&pl.ID, &pl.Name, &pl.Version, &pl.Source, &pl.Hash, &pl.ItemCount, &pl.IsActive, &pl.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price list: %w", err)
		}
		out = append(out, &pl)
	}
	return out, rows.Err()
}

// ImportPriceList stores a complete price list and makes it the active one.
// The import runs in a single transaction.
func (s *Store) ImportPriceList(ctx context.Context, list catalog.PriceList, source, hash string) (*PriceList, error) {
	pl := &PriceList{
		ID:        uuid.New(),
		Name:      list.Name,
		Version:   list.Version,
		Source:    source,
		Hash:      hash,
		ItemCount: len(list.Definitions),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE price_lists SET is_active = FALSE WHERE is_active`); err != nil {
		return nil, fmt.Errorf("failed to deactivate price lists: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO price_lists (id, name, version, source, hash, item_count, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, pl.ID, pl.Name, pl.Version, pl.Source, pl.Hash, pl.ItemCount, pl.IsActive, pl.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert price list: %w", err)
	}

	if err := copyDefinitions(ctx, tx, pl.ID, list.Definitions); err != nil {
		return nil, err
	}

	for id, r := range list.Regions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO regional_rates (price_list_id, region_id, material_mult, labor_mult, equipment_mult, tax_rate)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, pl.ID, id, r.Multipliers.Material, r.Multipliers.Labor, r.Multipliers.Equipment, r.TaxRate); err != nil {
			return nil, fmt.Errorf("failed to insert region %s: %w", id, err)
		}
	}
	for id, c := range list.Carriers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO carrier_op_rules (price_list_id, carrier_id, tax_on_materials_only, op_threshold, op_trade_minimum, overhead_pct, profit_pct)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, pl.ID, id, c.TaxOnMaterialsOnly, c.OpThreshold, c.OpTradeMinimum, c.OverheadPct, c.ProfitPct); err != nil {
			return nil, fmt.Errorf("failed to insert carrier %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return pl, nil
}

func copyDefinitions(ctx context.Context, tx *sql.Tx, priceListID uuid.UUID, defs []catalog.LineItemDefinition) error {
	if len(defs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("line_item_definitions",
		"price_list_id", "code", "description", "category_id", "unit",
		"material_components", "labor_components", "equipment_components",
		"waste_factor", "minimum_charge", "default_coverage_code", "trade_code", "active",
	))
	if err != nil {
		return fmt.Errorf("failed to prepare definition copy: %w", err)
	}
	defer stmt.Close()

	for _, def := range defs {
		material, labor, equipment, err := encodeComponents(def)
		if err != nil {
			return fmt.Errorf("definition %s: %w", def.Code, err)
		}
		if _, err := stmt.ExecContext(ctx,
			priceListID, def.Code, def.Description, def.CategoryID, def.Unit,
			material, labor, equipment,
			def.WasteFactor, def.MinimumCharge, string(def.DefaultCoverageCode), def.TradeCode, def.Active,
		); err != nil {
			return fmt.Errorf("failed to copy definition %s: %w", def.Code, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush definition copy: %w", err)
	}
	return nil
}

func encodeComponents(def catalog.LineItemDefinition) (material, labor, equipment string, err error) {
	enc := func(c []catalog.Component) (string, error) {
		if c == nil {
			c = []catalog.Component{}
		}
		b, err := json.Marshal(c)
		return string(b), err
	}
	if material, err = enc(def.MaterialComponents); err != nil {
		return
	}
	if labor, err = enc(def.LaborComponents); err != nil {
		return
	}
	equipment, err = enc(def.EquipmentComponents)
	return
}

func decodeComponents(def *catalog.LineItemDefinition, material, labor, equipment []byte) error {
	for _, c := range []struct {
		raw []byte
		dst *[]catalog.Component
	}{
		{material, &def.MaterialComponents},
		{labor, &def.LaborComponents},
		{equipment, &def.EquipmentComponents},
	} {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.dst); err != nil {
			return fmt.Errorf("failed to decode components: %w", err)
		}
	}
	return nil
}
