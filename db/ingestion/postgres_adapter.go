package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"claim-cost/db/postgres"
	"claim-cost/decision/catalog"
)

// PriceListStore is the part of the Postgres store used for ingestion
type PriceListStore interface {
	FindPriceListByHash(ctx context.Context, hash string) (*postgres.PriceList, error)
	ImportPriceList(ctx context.Context, list catalog.PriceList, source, hash string) (*postgres.PriceList, error)
}

// PostgresAdapter imports price lists into PostgreSQL
type PostgresAdapter struct {
	store PriceListStore
}

// NewPostgresAdapter creates a new Postgres adapter
func NewPostgresAdapter(store PriceListStore) *PostgresAdapter {
	return &PostgresAdapter{store: store}
}

// Ingest imports the document in one transaction unless its hash is known
func (a *PostgresAdapter) Ingest(ctx context.Context, doc *Document) (*IngestionResult, error) {
	start := time.Now()
	log := zerolog.Ctx(ctx)
	result := &IngestionResult{
		Name:    doc.List.Name,
		Version: doc.List.Version,
		Hash:    doc.Hash,
	}

	existing, err := a.store.FindPriceListByHash(ctx, doc.Hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		result.ID = existing.ID
		result.DefinitionCount = existing.ItemCount
		result.Duplicate = true
		result.Duration = time.Since(start)
		log.Info().Str("price_list_id", existing.ID.String()).Str("hash", doc.Hash).Msg("price list already ingested")
		return result, nil
	}

	pl, err := a.store.ImportPriceList(ctx, *doc.List, doc.URI, doc.Hash)
	if err != nil {
		return nil, err
	}
	result.ID = pl.ID
	result.DefinitionCount = pl.ItemCount
	result.RegionCount = len(doc.List.Regions)
	result.CarrierCount = len(doc.List.Carriers)
	result.Batches = 1
	result.Duration = time.Since(start)

	log.Info().Str("price_list_id", pl.ID.String()).Int("definitions", pl.ItemCount).Msg("price list ingested")
	return result, nil
}
