// Package memory provides an in-memory catalog store backed by a price list
// document.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"claim-cost/decision/catalog"
)

// Store is an in-memory catalog.Store
type Store struct {
	mu       sync.RWMutex
	name     string
	version  string
	defs     map[string]catalog.LineItemDefinition // code -> definition
	regions  map[string]catalog.RegionRates        // region -> rates
	carriers map[string]catalog.CarrierOpRules     // carrier -> rules
}

// NewStore creates a store holding the given price list
func NewStore(list catalog.PriceList) *Store {
	s := &Store{}
	s.Replace(list)
	return s
}

// LoadFile reads a price list JSON document from disk
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read price list: %w", err)
	}
	list, err := ParsePriceList(data)
	if err != nil {
		return nil, err
	}
	return NewStore(*list), nil
}

// ParsePriceList decodes a price list JSON document
func ParsePriceList(data []byte) (*catalog.PriceList, error) {
	var list catalog.PriceList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse price list: %w", err)
	}
	for i, def := range list.Definitions {
		if strings.TrimSpace(def.Code) == "" {
			return nil, fmt.Errorf("price list definition %d has no code", i)
		}
	}
	return &list, nil
}

// Replace swaps the whole catalog atomically
func (s *Store) Replace(list catalog.PriceList) {
	defs := make(map[string]catalog.LineItemDefinition, len(list.Definitions))
	for _, def := range list.Definitions {
		def.Code = strings.TrimSpace(def.Code)
		defs[def.Code] = def
	}
	regions := make(map[string]catalog.RegionRates, len(list.Regions))
	for id, r := range list.Regions {
		regions[id] = r
	}
	carriers := make(map[string]catalog.CarrierOpRules, len(list.Carriers))
	for id, c := range list.Carriers {
		carriers[id] = c
	}

	s.mu.Lock()
	s.name, s.version = list.Name, list.Version
	s.defs, s.regions, s.carriers = defs, regions, carriers
	s.mu.Unlock()
}

// Name returns the name and version of the loaded price list
func (s *Store) Name() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name, s.version
}

// Len returns the number of definitions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.defs)
}

func (s *Store) GetDefinitions(ctx context.Context, codes []string) (map[string]catalog.LineItemDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]catalog.LineItemDefinition, len(codes))
	for _, code := range codes {
		if def, ok := s.defs[code]; ok {
			out[code] = def
		}
	}
	return out, nil
}

func (s *Store) GetRegionalMultipliers(ctx context.Context, regionID string) (catalog.RegionalMultipliers, error) {
	r, err := s.region(ctx, regionID)
	if err != nil {
		return catalog.RegionalMultipliers{}, err
	}
	return r.Multipliers, nil
}

func (s *Store) GetTaxRate(ctx context.Context, regionID string) (decimal.Decimal, error) {
	r, err := s.region(ctx, regionID)
	if err != nil {
		return decimal.Zero, err
	}
	return r.TaxRate, nil
}

func (s *Store) GetCarrierOpRules(ctx context.Context, carrierID string) (catalog.CarrierOpRules, error) {
	if err := ctx.Err(); err != nil {
		return catalog.CarrierOpRules{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules, ok := s.carriers[carrierID]
	if !ok {
		return catalog.CarrierOpRules{}, catalog.ErrNotFound
	}
	return rules, nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) region(ctx context.Context, regionID string) (catalog.RegionRates, error) {
	if err := ctx.Err(); err != nil {
		return catalog.RegionRates{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.regions[regionID]
	if !ok {
		return catalog.RegionRates{}, catalog.ErrNotFound
	}
	return r, nil
}
