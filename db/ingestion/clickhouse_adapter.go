// Package ingestion loads price list documents into the catalog stores
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"claim-cost/db/clickhouse"
	"claim-cost/decision/catalog"
)

// BatchSize is the number of definitions sent per ClickHouse batch
const BatchSize = 1000

// SnapshotStore is the part of the ClickHouse store used for ingestion
type SnapshotStore interface {
	FindSnapshotByHash(ctx context.Context, hash string) (*clickhouse.Snapshot, error)
	CreateSnapshot(ctx context.Context, snapshot *clickhouse.Snapshot) error
	BulkCreateDefinitions(ctx context.Context, snapshotID uuid.UUID, defs []catalog.LineItemDefinition) error
	CreateRegionalRates(ctx context.Context, snapshotID uuid.UUID, regions map[string]catalog.RegionRates) error
	CreateCarrierRules(ctx context.Context, snapshotID uuid.UUID, carriers map[string]catalog.CarrierOpRules) error
	ActivateSnapshot(ctx context.Context, id uuid.UUID) error
}

// IngestionResult tracks the result of a price list import
type IngestionResult struct {
	ID              uuid.UUID     `json:"id"`
	Name            string        `json:"name"`
	Version         string        `json:"version"`
	Hash            string        `json:"hash"`
	DefinitionCount int           `json:"definition_count"`
	RegionCount     int           `json:"region_count"`
	CarrierCount    int           `json:"carrier_count"`
	Batches         int           `json:"batches"`
	Duplicate       bool          `json:"duplicate"`
	Duration        time.Duration `json:"duration"`
}

// ClickHouseAdapter imports price lists as ClickHouse snapshots
type ClickHouseAdapter struct {
	store SnapshotStore
}

// NewClickHouseAdapter creates a new ClickHouse adapter
func NewClickHouseAdapter(store SnapshotStore) *ClickHouseAdapter {
	return &ClickHouseAdapter{store: store}
}

// Ingest writes the document as a new snapshot and activates it once every
// row is stored. A document whose hash is already known is skipped.
func (a *ClickHouseAdapter) Ingest(ctx context.Context, doc *Document) (*IngestionResult, error) {
	start := time.Now()
	log := zerolog.Ctx(ctx)
	result := &IngestionResult{
		Name:    doc.List.Name,
		Version: doc.List.Version,
		Hash:    doc.Hash,
	}

	existing, err := a.store.FindSnapshotByHash(ctx, doc.Hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		result.ID = existing.ID
		result.DefinitionCount = existing.ItemCount
		result.Duplicate = true
		result.Duration = time.Since(start)
		log.Info().Str("snapshot_id", existing.ID.String()).Str("hash", doc.Hash).Msg("price list already ingested")
		return result, nil
	}

	snapshot := &clickhouse.Snapshot{
		ID:        uuid.New(),
		Name:      doc.List.Name,
		Version:   doc.List.Version,
		Source:    doc.URI,
		Hash:      doc.Hash,
		ItemCount: len(doc.List.Definitions),
		IsActive:  false,
	}
	if err := a.store.CreateSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}
	result.ID = snapshot.ID

	defs := doc.List.Definitions
	for i := 0; i < len(defs); i += BatchSize {
		end := min(i+BatchSize, len(defs))
		if err := a.store.BulkCreateDefinitions(ctx, snapshot.ID, defs[i:end]); err != nil {
			return result, fmt.Errorf("failed to insert definitions at batch %d: %w", i/BatchSize, err)
		}
		result.Batches++
		result.DefinitionCount += end - i
		log.Debug().Int("batch", result.Batches).Int("definitions", result.DefinitionCount).Msg("definition batch stored")
	}

	if err := a.store.CreateRegionalRates(ctx, snapshot.ID, doc.List.Regions); err != nil {
		return result, fmt.Errorf("failed to insert regional rates: %w", err)
	}
	result.RegionCount = len(doc.List.Regions)

	if err := a.store.CreateCarrierRules(ctx, snapshot.ID, doc.List.Carriers); err != nil {
		return result, fmt.Errorf("failed to insert carrier rules: %w", err)
	}
	result.CarrierCount = len(doc.List.Carriers)

	if err := a.store.ActivateSnapshot(ctx, snapshot.ID); err != nil {
		return result, fmt.Errorf("failed to activate snapshot: %w", err)
	}

	result.Duration = time.Since(start)
	log.Info().
		Str("snapshot_id", snapshot.ID.String()).
		Int("definitions", result.DefinitionCount).
		Int("regions", result.RegionCount).
		Int("carriers", result.CarrierCount).
		Dur("duration", result.Duration).
		Msg("price list ingested")
	return result, nil
}
