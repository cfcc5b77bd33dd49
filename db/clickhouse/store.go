// Package clickhouse provides the ClickHouse implementation of catalog.Store.
// Price lists are stored as immutable snapshots; reads resolve against the
// single active snapshot.
package clickhouse

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"claim-cost/decision/catalog"
)

//go:embed schema.sql
var schemaSQL string

// Snapshot is one imported price list
type Snapshot struct {
	ID        uuid.UUID `ch:"id" json:"id"`
	Name      string    `ch:"name" json:"name"`
	Version   string    `ch:"version" json:"version"`
	Source    string    `ch:"source" json:"source"`
	Hash      string    `ch:"hash" json:"hash"`
	ItemCount int       `ch:"item_count" json:"item_count"`
	IsActive  bool      `ch:"is_active" json:"is_active"`
	CreatedAt time.Time `ch:"created_at" json:"created_at"`
}

// Config holds ClickHouse connection configuration
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "claimcost",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Store implements catalog.Store using ClickHouse
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore creates a new ClickHouse catalog store
func NewStore(cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// Migrate creates the catalog tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range SchemaStatements() {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// SchemaStatements splits the embedded schema into single statements
func SchemaStatements() []string {
	var out []string
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// =============================================================================
// SNAPSHOT OPERATIONS
// =============================================================================

const snapshotColumns = `id, name, version, source, hash, item_count, is_active, created_at`

// CreateSnapshot inserts a new price list snapshot
func (s *Store) CreateSnapshot(ctx context.Context, snapshot *Snapshot) error {
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO price_list_snapshots (` + snapshotColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	return s.conn.Exec(ctx, query,
		snapshot.ID,
		snapshot.Name,
		snapshot.Version,
		snapshot.Source,
		snapshot.Hash,
		uint32(snapshot.ItemCount),
		boolToUInt8(snapshot.IsActive),
		snapshot.CreatedAt,
	)
}

// GetSnapshot retrieves a snapshot by ID
func (s *Store) GetSnapshot(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM price_list_snapshots FINAL
		WHERE id = ? AND _deleted = 0
	`
	return scanSnapshot(s.conn.QueryRow(ctx, query, id))
}

// GetActiveSnapshot retrieves the active snapshot, or nil when none is active
func (s *Store) GetActiveSnapshot(ctx context.Context) (*Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM price_list_snapshots FINAL
		WHERE is_active = 1 AND _deleted = 0
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanSnapshot(s.conn.QueryRow(ctx, query))
}

// FindSnapshotByHash finds a snapshot by its content hash
func (s *Store) FindSnapshotByHash(ctx context.Context, hash string) (*Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM price_list_snapshots FINAL
		WHERE hash = ? AND _deleted = 0
		LIMIT 1
	`
	return scanSnapshot(s.conn.QueryRow(ctx, query, hash))
}

// ActivateSnapshot marks a snapshot active and deactivates all others
func (s *Store) ActivateSnapshot(ctx context.Context, id uuid.UUID) error {
	snapshot, err := s.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return fmt.Errorf("snapshot not found: %s", id)
	}

	deactivateQuery := `
		INSERT INTO price_list_snapshots
		SELECT id, name, version, source, hash, item_count, 0 AS is_active, created_at,
			   _version + 1 AS _version, _deleted
		FROM price_list_snapshots FINAL
		WHERE is_active = 1 AND _deleted = 0 AND id != ?
	`
	if err := s.conn.Exec(ctx, deactivateQuery, id); err != nil {
		return fmt.Errorf("failed to deactivate snapshots: %w", err)
	}

	activateQuery := `
		INSERT INTO price_list_snapshots
		SELECT id, name, version, source, hash, item_count, 1 AS is_active, created_at,
			   _version + 1 AS _version, _deleted
		FROM price_list_snapshots FINAL
		WHERE id = ?
	`
	if err := s.conn.Exec(ctx, activateQuery, id); err != nil {
		return fmt.Errorf("failed to activate snapshot: %w", err)
	}
	return nil
}

// ListSnapshots lists all snapshots, newest first
func (s *Store) ListSnapshots(ctx context.Context) ([]*Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM price_list_snapshots FINAL
		WHERE _deleted = 0
		ORDER BY created_at DESC
	`
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var snapshot Snapshot
	var itemCount uint32
	var isActive uint8
	err := row.Scan(
		&snapshot.ID, &snapshot.Name, &snapshot.Version, &snapshot.Source,
		&snapshot.Hash, &itemCount, &isActive, &snapshot.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	snapshot.ItemCount = int(itemCount)
	snapshot.IsActive = isActive == 1
	return &snapshot, nil
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// BulkCreateDefinitions inserts definitions into a snapshot with one batch
func (s *Store) BulkCreateDefinitions(ctx context.Context, snapshotID uuid.UUID, defs []catalog.LineItemDefinition) error {
	if len(defs) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO line_item_definitions (
			snapshot_id, code, description, category_id, unit,
			material_components, labor_components, equipment_components,
			waste_factor, minimum_charge, default_coverage_code, trade_code,
			active, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	now := time.Now().UTC()
	for _, def := range defs {
		material, labor, equipment, err := encodeComponents(def)
		if err != nil {
			return fmt.Errorf("definition %s: %w", def.Code, err)
		}
		if err := batch.Append(
			snapshotID, def.Code, def.Description, def.CategoryID, def.Unit,
			material, labor, equipment,
			def.WasteFactor, def.MinimumCharge, string(def.DefaultCoverageCode), def.TradeCode,
			boolToUInt8(def.Active), now,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// CreateRegionalRates inserts the region rows of a snapshot
func (s *Store) CreateRegionalRates(ctx context.Context, snapshotID uuid.UUID, regions map[string]catalog.RegionRates) error {
	if len(regions) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO regional_rates (
			snapshot_id, region_id, material_mult, labor_mult, equipment_mult, tax_rate, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	now := time.Now().UTC()
	for id, r := range regions {
		if err := batch.Append(snapshotID, id, r.Multipliers.Material, r.Multipliers.Labor, r.Multipliers.Equipment, r.TaxRate, now); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}
	return batch.Send()
}

// CreateCarrierRules inserts the carrier rows of a snapshot
func (s *Store) CreateCarrierRules(ctx context.Context, snapshotID uuid.UUID, carriers map[string]catalog.CarrierOpRules) error {
	if len(carriers) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO carrier_op_rules (
			snapshot_id, carrier_id, tax_on_materials_only, op_threshold,
			op_trade_minimum, overhead_pct, profit_pct, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	now := time.Now().UTC()
	for id, c := range carriers {
		if err := batch.Append(
			snapshotID, id, boolToUInt8(c.TaxOnMaterialsOnly), c.OpThreshold,
			int32(c.OpTradeMinimum), c.OverheadPct, c.ProfitPct, now,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}
	return batch.Send()
}

// =============================================================================
// CATALOG READS
// =============================================================================

const activeSnapshot = `(
	SELECT id FROM price_list_snapshots FINAL
	WHERE is_active = 1 AND _deleted = 0
	ORDER BY created_at DESC
	LIMIT 1
)`

// GetDefinitions fetches all requested codes from the active snapshot in one query
func (s *Store) GetDefinitions(ctx context.Context, codes []string) (map[string]catalog.LineItemDefinition, error) {
	out := make(map[string]catalog.LineItemDefinition, len(codes))
	if len(codes) == 0 {
		return out, nil
	}

	query := `
		SELECT code, description, category_id, unit,
			   material_components, labor_components, equipment_components,
			   waste_factor, minimum_charge, default_coverage_code, trade_code, active
		FROM line_item_definitions FINAL
		WHERE snapshot_id = ` + activeSnapshot + `
		  AND has(?, code) AND _deleted = 0
	`
	rows, err := s.conn.Query(ctx, query, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var def catalog.LineItemDefinition
		var material, labor, equipment, coverage string
		var active uint8
		if err := rows.Scan(
			&def.Code, &def.Description, &def.CategoryID, &def.Unit,
			&material, &labor, &equipment,
			&def.WasteFactor, &def.MinimumCharge, &coverage, &def.TradeCode, &active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		if err := decodeComponents(&def, material, labor, equipment); err != nil {
			return nil, fmt.Errorf("definition %s: %w", def.Code, err)
		}
		def.DefaultCoverageCode = catalog.CoverageCode(coverage)
		def.Active = active == 1
		out[def.Code] = def
	}
	return out, rows.Err()
}

func (s *Store) GetRegionalMultipliers(ctx context.Context, regionID string) (catalog.RegionalMultipliers, error) {
	query := `
		SELECT material_mult, labor_mult, equipment_mult
		FROM regional_rates FINAL
		WHERE snapshot_id = ` + activeSnapshot + ` AND region_id = ? AND _deleted = 0
		LIMIT 1
	`
	var m catalog.RegionalMultipliers
	err := s.conn.QueryRow(ctx, query, regionID).Scan(&m.Material, &m.Labor, &m.Equipment)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.RegionalMultipliers{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.RegionalMultipliers{}, fmt.Errorf("failed to get regional multipliers: %w", err)
	}
	return m, nil
}

func (s *Store) GetTaxRate(ctx context.Context, regionID string) (decimal.Decimal, error) {
	query := `
		SELECT tax_rate
		FROM regional_rates FINAL
		WHERE snapshot_id = ` + activeSnapshot + ` AND region_id = ? AND _deleted = 0
		LIMIT 1
	`
	var rate decimal.Decimal
	err := s.conn.QueryRow(ctx, query, regionID).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, catalog.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get tax rate: %w", err)
	}
	return rate, nil
}

func (s *Store) GetCarrierOpRules(ctx context.Context, carrierID string) (catalog.CarrierOpRules, error) {
	query := `
		SELECT tax_on_materials_only, op_threshold, op_trade_minimum, overhead_pct, profit_pct
		FROM carrier_op_rules FINAL
		WHERE snapshot_id = ` + activeSnapshot + ` AND carrier_id = ? AND _deleted = 0
		LIMIT 1
	`
	var rules catalog.CarrierOpRules
	var materialsOnly uint8
	var tradeMin int32
	err := s.conn.QueryRow(ctx, query, carrierID).Scan(
		&materialsOnly, &rules.OpThreshold, &tradeMin, &rules.OverheadPct, &rules.ProfitPct,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.CarrierOpRules{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.CarrierOpRules{}, fmt.Errorf("failed to get carrier rules: %w", err)
	}
	rules.TaxOnMaterialsOnly = materialsOnly == 1
	rules.OpTradeMinimum = int(tradeMin)
	return rules, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

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

func decodeComponents(def *catalog.LineItemDefinition, material, labor, equipment string) error {
	for _, c := range []struct {
		raw string
		dst *[]catalog.Component
	}{
		{material, &def.MaterialComponents},
		{labor, &def.LaborComponents},
		{equipment, &def.EquipmentComponents},
	} {
		if c.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c.raw), c.dst); err != nil {
			return fmt.Errorf("failed to decode components: %w", err)
		}
	}
	return nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
