package estimate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"claim-cost/decision/catalog"
	claimerrors "claim-cost/pkg/errors"
)

var tracer = otel.Tracer("claim-cost/decision/estimate")

// Engine prices scope results into estimates
type Engine struct {
	lookup     *catalog.Lookup
	pricer     *Pricer
	settlement SettlementCalculator
	workers    int
	cache      *resultCache
	now        func() time.Time
	logger     zerolog.Logger
}

// EngineDeps are the collaborators of an Engine
type EngineDeps struct {
	Store catalog.Store
	Costs CostCalculator
	// Settlement is optional; without it deductibles are rejected.
	Settlement SettlementCalculator
	// Workers bounds concurrent item pricing. Defaults to GOMAXPROCS.
	Workers int
	// CacheTTL enables the result cache when positive.
	CacheTTL time.Duration
	Now      func() time.Time
	Logger   *zerolog.Logger
}

// NewEngine creates an engine
func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("estimate engine: catalog store is required")
	}
	if deps.Costs == nil {
		return nil, errors.New("estimate engine: cost calculator is required")
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	e := &Engine{
		lookup:     catalog.NewLookup(deps.Store),
		pricer:     NewPricer(deps.Costs),
		settlement: deps.Settlement,
		workers:    workers,
		now:        func() time.Time { return now().UTC() },
		logger:     logger.With().Str("component", "estimate").Logger(),
	}
	if deps.CacheTTL > 0 {
		e.cache = newResultCache(deps.CacheTTL, now)
	}
	return e, nil
}

// Lookup returns the catalog lookup the engine prices against
func (e *Engine) Lookup() *catalog.Lookup {
	return e.lookup
}

// PurgeCache drops cached results
func (e *Engine) PurgeCache() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

// PriceScope prices the items of a single zone
func (e *Engine) PriceScope(ctx context.Context, scope ScopeResult, cfg Config) (*PricedEstimateResult, error) {
	return e.PriceEstimate(ctx, []ScopeResult{scope}, cfg)
}

// PriceEstimate prices the items of all zones as one estimate. Items without
// zone provenance take the id and name of the zone they came from.
func (e *Engine) PriceEstimate(ctx context.Context, scopes []ScopeResult, cfg Config) (*PricedEstimateResult, error) {
	var items []SuggestedLineItem
	for _, scope := range scopes {
		for _, item := range scope.Items {
			if item.ZoneID == "" {
				item.ZoneID = scope.ZoneID
			}
			if item.ZoneName == "" {
				item.ZoneName = scope.ZoneName
			}
			items = append(items, item)
		}
	}
	return e.price(ctx, items, cfg)
}

func (e *Engine) price(ctx context.Context, items []SuggestedLineItem, cfg Config) (*PricedEstimateResult, error) {
	ctx, span := tracer.Start(ctx, "estimate.price", trace.WithAttributes(
		attribute.Int("estimate.items", len(items)),
		attribute.String("estimate.region", cfg.RegionID),
	))
	defer span.End()

	if l := zerolog.Ctx(ctx); l.GetLevel() == zerolog.Disabled {
		ctx = e.logger.WithContext(ctx)
	}
	log := zerolog.Ctx(ctx)

	result, err := e.priceTraced(ctx, items, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Int("items", len(items)).Str("region", cfg.RegionID).Msg("estimate pricing failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (e *Engine) priceTraced(ctx context.Context, items []SuggestedLineItem, cfg Config) (*PricedEstimateResult, error) {
	log := zerolog.Ctx(ctx)

	hash, err := inputHash(items, cfg)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get(hash); ok {
			log.Debug().Str("input_hash", hash).Msg("estimate served from cache")
			return cached, nil
		}
	}

	itemCodes := make([]string, 0, len(items))
	for _, item := range items {
		itemCodes = append(itemCodes, item.Code)
	}
	rates, err := e.lookup.Resolve(ctx, itemCodes, cfg.RegionID, cfg.CarrierID)
	if err != nil {
		return nil, claimerrors.NewCatalogUnavailableError(err)
	}

	outcomes := make([]Outcome, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			out, err := e.pricer.Price(gctx, item, rates, cfg.RegionID)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, claimerrors.NewPricingError(err)
	}

	priced := make([]PricedLineItem, 0, len(items))
	var skipped []Skip
	for _, out := range outcomes {
		if out.Skipped != nil {
			skipped = append(skipped, *out.Skipped)
			log.Warn().Str("code", out.Skipped.Code).Str("reason", string(out.Skipped.Reason)).Msg("line item skipped")
			continue
		}
		priced = append(priced, *out.Priced)
	}

	breakdown := Aggregate(priced, rates.TaxRate)
	op := DetermineOverheadAndProfit(breakdown.Totals.SubtotalAfterTax, breakdown.TradeCodes(), rates.Carrier, cfg.OverheadPct, cfg.ProfitPct)

	settled, err := settle(ctx, e.settlement, priced, op, cfg.Deductibles)
	if err != nil {
		return nil, claimerrors.NewSettlementError(err)
	}

	result := &PricedEstimateResult{
		ID:                uuid.New(),
		LineItems:         priced,
		Skipped:           skipped,
		TradeBreakdown:    breakdown.Trades,
		CoverageBreakdown: breakdown.Coverages,
		Totals:            breakdown.Totals,
		OverheadAndProfit: op,
		RCVTotal:          RCVTotal(breakdown.Totals, op),
		Config: ConfigSnapshot{
			RegionID:     cfg.RegionID,
			CarrierID:    cfg.CarrierID,
			RegionKnown:  rates.RegionKnown,
			CarrierKnown: rates.CarrierKnown,
			PricedAt:     e.now(),
		},
		InputHash:  hash,
		Settlement: settled,
	}

	log.Info().
		Str("estimate_id", result.ID.String()).
		Int("priced", len(priced)).
		Int("skipped", len(items)-len(priced)).
		Str("rcv_total", result.RCVTotal.StringFixed(2)).
		Bool("op_eligible", op.Eligible).
		Msg("estimate priced")

	if e.cache != nil {
		e.cache.Put(hash, result)
	}
	return result, nil
}

func inputHash(items []SuggestedLineItem, cfg Config) (string, error) {
	payload, err := json.Marshal(struct {
		Items  []SuggestedLineItem `json:"items"`
		Config Config              `json:"config"`
	}{items, cfg})
	if err != nil {
		return "", fmt.Errorf("failed to hash estimate input: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
