package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by a Store when a region, carrier or price list
// does not exist. Lookup turns it into a default; any other error is fatal.
var ErrNotFound = errors.New("catalog: not found")

// Store is the Catalog & Rate Store collaborator
type Store interface {
	// GetDefinitions returns the definitions for the codes that exist.
	// Missing codes are omitted, not reported as errors.
	GetDefinitions(ctx context.Context, codes []string) (map[string]LineItemDefinition, error)
	GetRegionalMultipliers(ctx context.Context, regionID string) (RegionalMultipliers, error)
	GetTaxRate(ctx context.Context, regionID string) (decimal.Decimal, error)
	GetCarrierOpRules(ctx context.Context, carrierID string) (CarrierOpRules, error)
}

// Pinger is implemented by stores backed by a network connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// System defaults used when a region or carrier cannot be found.
const (
	DefaultCoverageCode   = CoverageDwelling
	DefaultTradeCode      = "GEN"
	DefaultOpTradeMinimum = 3
)

var (
	DefaultTaxRate     = decimal.Zero
	DefaultOpThreshold = decimal.Zero
	DefaultOverheadPct = decimal.NewFromInt(10)
	DefaultProfitPct   = decimal.NewFromInt(10)
)

// IdentityMultipliers is returned for regions the store does not know
func IdentityMultipliers() RegionalMultipliers {
	one := decimal.NewFromInt(1)
	return RegionalMultipliers{Material: one, Labor: one, Equipment: one}
}

// DefaultCarrierOpRules is the system-default rule set for a null or
// unknown carrier
func DefaultCarrierOpRules() CarrierOpRules {
	return CarrierOpRules{
		TaxOnMaterialsOnly: false,
		OpThreshold:        DefaultOpThreshold,
		OpTradeMinimum:     DefaultOpTradeMinimum,
		OverheadPct:        DefaultOverheadPct,
		ProfitPct:          DefaultProfitPct,
	}
}

// Rates is everything the pricer needs for one request, resolved once
type Rates struct {
	Definitions  map[string]LineItemDefinition
	Multipliers  RegionalMultipliers
	TaxRate      decimal.Decimal
	Carrier      CarrierOpRules
	RegionKnown  bool
	CarrierKnown bool
}

// Lookup is a thin adapter over a Store that batches definition retrieval
// and applies the region and carrier fallbacks
type Lookup struct {
	store Store
}

// NewLookup wraps a store
func NewLookup(store Store) *Lookup {
	return &Lookup{store: store}
}

// Store returns the underlying store
func (l *Lookup) Store() Store {
	return l.store
}

// Resolve fetches the definitions for codes plus all rate data for the
// region and carrier in one pass
func (l *Lookup) Resolve(ctx context.Context, codes []string, regionID string, carrierID *string) (*Rates, error) {
	defs, err := l.Definitions(ctx, codes)
	if err != nil {
		return nil, err
	}

	mult, regionKnown, err := l.regionalMultipliers(ctx, regionID)
	if err != nil {
		return nil, err
	}

	taxRate, err := l.TaxRate(ctx, regionID)
	if err != nil {
		return nil, err
	}

	rules, carrierKnown, err := l.carrierOpRules(ctx, carrierID)
	if err != nil {
		return nil, err
	}

	return &Rates{
		Definitions:  defs,
		Multipliers:  mult,
		TaxRate:      taxRate,
		Carrier:      rules,
		RegionKnown:  regionKnown,
		CarrierKnown: carrierKnown,
	}, nil
}

// Definitions returns the active definitions for codes. Codes are trimmed and
// de-duplicated so the store sees a single batched request.
func (l *Lookup) Definitions(ctx context.Context, codes []string) (map[string]LineItemDefinition, error) {
	unique := uniqueCodes(codes)
	if len(unique) == 0 {
		return map[string]LineItemDefinition{}, nil
	}

	found, err := l.store.GetDefinitions(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to load line item definitions: %w", err)
	}

	defs := make(map[string]LineItemDefinition, len(found))
	for code, def := range found {
		if !def.Active {
			zerolog.Ctx(ctx).Debug().Str("code", code).Msg("Ignoring inactive line item definition")
			continue
		}
		defs[code] = def
	}
	return defs, nil
}

// RegionalMultipliers returns the multipliers for a region, or the identity
// multipliers when the region is unknown
func (l *Lookup) RegionalMultipliers(ctx context.Context, regionID string) (RegionalMultipliers, error) {
	mult, _, err := l.regionalMultipliers(ctx, regionID)
	return mult, err
}

func (l *Lookup) regionalMultipliers(ctx context.Context, regionID string) (RegionalMultipliers, bool, error) {
	if strings.TrimSpace(regionID) == "" {
		return IdentityMultipliers(), false, nil
	}
	mult, err := l.store.GetRegionalMultipliers(ctx, regionID)
	if errors.Is(err, ErrNotFound) {
		zerolog.Ctx(ctx).Info().Str("region", regionID).Msg("Unknown region, using identity multipliers")
		return IdentityMultipliers(), false, nil
	}
	if err != nil {
		return RegionalMultipliers{}, false, fmt.Errorf("failed to load regional multipliers for %s: %w", regionID, err)
	}
	return mult, true, nil
}

// TaxRate returns the tax rate fraction for a region, DefaultTaxRate when the
// region has none
func (l *Lookup) TaxRate(ctx context.Context, regionID string) (decimal.Decimal, error) {
	if strings.TrimSpace(regionID) == "" {
		return DefaultTaxRate, nil
	}
	rate, err := l.store.GetTaxRate(ctx, regionID)
	if errors.Is(err, ErrNotFound) {
		return DefaultTaxRate, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load tax rate for %s: %w", regionID, err)
	}
	return rate, nil
}

// CarrierOpRules returns the carrier's rules. A nil or unknown carrier gets
// DefaultCarrierOpRules.
func (l *Lookup) CarrierOpRules(ctx context.Context, carrierID *string) (CarrierOpRules, error) {
	rules, _, err := l.carrierOpRules(ctx, carrierID)
	return rules, err
}

func (l *Lookup) carrierOpRules(ctx context.Context, carrierID *string) (CarrierOpRules, bool, error) {
	if carrierID == nil || strings.TrimSpace(*carrierID) == "" {
		return DefaultCarrierOpRules(), false, nil
	}
	rules, err := l.store.GetCarrierOpRules(ctx, *carrierID)
	if errors.Is(err, ErrNotFound) {
		zerolog.Ctx(ctx).Info().Str("carrier", *carrierID).Msg("Unknown carrier, using default O&P rules")
		return DefaultCarrierOpRules(), false, nil
	}
	if err != nil {
		return CarrierOpRules{}, false, fmt.Errorf("failed to load carrier rules for %s: %w", *carrierID, err)
	}
	return rules, true, nil
}

func uniqueCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
