// claimcost - property claim estimate pricing
//
// Usage:
//
//	claimcost estimate --scope scope.json --region TX-DAL [options]
//	claimcost serve --port 8080
//	claimcost catalog import --source s3://bucket/pricelist.json
//	claimcost catalog migrate
//	claimcost catalog snapshots
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"claim-cost/api"
	"claim-cost/db/clickhouse"
	"claim-cost/db/ingestion"
	"claim-cost/db/memory"
	"claim-cost/db/postgres"
	"claim-cost/decision/catalog"
	"claim-cost/decision/costcalc"
	"claim-cost/decision/estimate"
	"claim-cost/decision/settlement"
	"claim-cost/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	storeMemory     = "memory"
	storeClickHouse = "clickhouse"
	storePostgres   = "postgres"
)

func main() {
	if err := platform.LoadDotEnv(platform.GetEnv("CLAIMCOST_ENV_FILE", ".env")); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load env file: %v\n", err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:    "claimcost",
		Usage:   "Price property claim scopes into estimates and settlements",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL", "CLAIMCOST_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-pretty",
				Value:   platform.GetEnvBool("CLAIMCOST_DEV", false),
				Usage:   "Human readable console logs",
				EnvVars: []string{"CLAIMCOST_LOG_PRETTY"},
			},
			&cli.StringFlag{
				Name:    "store",
				Value:   storeMemory,
				Usage:   "Catalog store (memory, clickhouse, postgres)",
				EnvVars: []string{"CLAIMCOST_STORE"},
			},
			&cli.StringFlag{
				Name:    "price-list",
				Usage:   "Price list JSON file for the memory store",
				EnvVars: []string{"CLAIMCOST_PRICE_LIST"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "claimcost",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Usage:   "PostgreSQL connection string",
				EnvVars: []string{"POSTGRES_DSN", "DATABASE_URL"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Value:   runtime.GOMAXPROCS(0),
				Usage:   "Concurrent line item pricing workers",
				EnvVars: []string{"CLAIMCOST_WORKERS"},
			},
			&cli.DurationFlag{
				Name:    "cache-ttl",
				Value:   0,
				Usage:   "Result cache TTL (0 disables the cache)",
				EnvVars: []string{"CLAIMCOST_CACHE_TTL"},
			},
		},

		Before: func(c *cli.Context) error {
			platform.InitLogger(c.String("log-level"), c.Bool("log-pretty"))
			return nil
		},

		Commands: []*cli.Command{
			estimateCommand(),
			serveCommand(),
			catalogCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commandContext carries the global logger so zerolog.Ctx works downstream
func commandContext(c *cli.Context) context.Context {
	return log.Logger.WithContext(c.Context)
}

// openStore connects the configured catalog store. The returned close func is never nil.
func openStore(c *cli.Context) (catalog.Store, func() error, error) {
	noop := func() error { return nil }

	switch kind := strings.ToLower(c.String("store")); kind {
	case storeMemory:
		path := c.String("price-list")
		if path == "" {
			return nil, noop, fmt.Errorf("--price-list is required for the memory store")
		}
		store, err := memory.LoadFile(path)
		if err != nil {
			return nil, noop, err
		}
		name, ver := store.Name()
		log.Info().Str("price_list", name).Str("version", ver).Int("definitions", store.Len()).Msg("loaded price list")
		return store, noop, nil
	case storeClickHouse:
		store, err := openClickHouse(c)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case storePostgres:
		store, err := openPostgres(c)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown store %q (want memory, clickhouse or postgres)", kind)
	}
}

func openClickHouse(c *cli.Context) (*clickhouse.Store, error) {
	store, err := clickhouse.NewStore(&clickhouse.Config{
		Host:     c.String("clickhouse-host"),
		Port:     c.Int("clickhouse-port"),
		Database: c.String("clickhouse-database"),
		Username: c.String("clickhouse-user"),
		Password: c.String("clickhouse-password"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	return store, nil
}

func openPostgres(c *cli.Context) (*postgres.Store, error) {
	dsn := c.String("postgres-dsn")
	if dsn == "" {
		return nil, fmt.Errorf("--postgres-dsn is required for the postgres store")
	}
	store, err := postgres.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return store, nil
}

func newEngine(c *cli.Context, store catalog.Store) (*estimate.Engine, error) {
	logger := log.Logger
	return estimate.NewEngine(estimate.EngineDeps{
		Store:      store,
		Costs:      costcalc.NewCalculator(),
		Settlement: settlement.NewCalculator(),
		Workers:    c.Int("workers"),
		CacheTTL:   c.Duration("cache-ttl"),
		Logger:     &logger,
	})
}

// =============================================================================
// ESTIMATE COMMAND
// =============================================================================

func estimateCommand() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "Price a scope JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "scope",
				Aliases:  []string{"s"},
				Usage:    "Path to a scope result, or an array of zone scope results",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "region",
				Aliases: []string{"r"},
				Usage:   "Pricing region",
			},
			&cli.StringFlag{
				Name:  "carrier",
				Usage: "Carrier identifier for O&P rules",
			},
			&cli.StringFlag{
				Name:  "overhead-pct",
				Usage: "Override the carrier overhead percentage",
			},
			&cli.StringFlag{
				Name:  "profit-pct",
				Usage: "Override the carrier profit percentage",
			},
			&cli.StringSliceFlag{
				Name:  "deductible",
				Usage: "Deductible per coverage as CODE=AMOUNT, repeatable",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json)",
			},
		},
		Action: runEstimate,
	}
}

func runEstimate(c *cli.Context) error {
	ctx := commandContext(c)

	data, err := os.ReadFile(c.String("scope"))
	if err != nil {
		return fmt.Errorf("failed to read scope: %w", err)
	}
	scopes, err := parseScopes(data)
	if err != nil {
		return err
	}
	cfg, err := buildConfig(c.String("region"), c.String("carrier"), c.String("overhead-pct"), c.String("profit-pct"), c.StringSlice("deductible"))
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := newEngine(c, store)
	if err != nil {
		return err
	}

	result, err := engine.PriceEstimate(ctx, scopes, cfg)
	if err != nil {
		return fmt.Errorf("estimate pricing failed: %w", err)
	}

	switch c.String("format") {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		return writeTable(os.Stdout, result)
	}
}

// parseScopes accepts a single scope result object or an array of them
func parseScopes(data []byte) ([]estimate.ScopeResult, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var scopes []estimate.ScopeResult
		if err := json.Unmarshal(data, &scopes); err != nil {
			return nil, fmt.Errorf("failed to parse scopes: %w", err)
		}
		return scopes, nil
	}
	var scope estimate.ScopeResult
	if err := json.Unmarshal(data, &scope); err != nil {
		return nil, fmt.Errorf("failed to parse scope: %w", err)
	}
	return []estimate.ScopeResult{scope}, nil
}

func buildConfig(region, carrier, overheadPct, profitPct string, deductibles []string) (estimate.Config, error) {
	cfg := estimate.Config{RegionID: region}
	if carrier != "" {
		cfg.CarrierID = &carrier
	}
	var err error
	if cfg.OverheadPct, err = optionalDecimal("overhead-pct", overheadPct); err != nil {
		return cfg, err
	}
	if cfg.ProfitPct, err = optionalDecimal("profit-pct", profitPct); err != nil {
		return cfg, err
	}
	if cfg.Deductibles, err = parseDeductibles(deductibles); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func optionalDecimal(name, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	if v.IsNegative() {
		return nil, fmt.Errorf("--%s must not be negative", name)
	}
	return &v, nil
}

// parseDeductibles reads CODE=AMOUNT pairs
func parseDeductibles(pairs []string) (settlement.Deductibles, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(settlement.Deductibles, len(pairs))
	for _, pair := range pairs {
		code, amount, ok := strings.Cut(pair, "=")
		code = strings.ToUpper(strings.TrimSpace(code))
		if !ok || code == "" {
			return nil, fmt.Errorf("invalid deductible %q: want CODE=AMOUNT", pair)
		}
		if !catalog.CoverageCode(code).Valid() {
			return nil, fmt.Errorf("invalid deductible %q: unknown coverage %s", pair, code)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("invalid deductible %q: %w", pair, err)
		}
		if v.IsNegative() {
			return nil, fmt.Errorf("invalid deductible %q: must not be negative", pair)
		}
		out[code] = v
	}
	return out, nil
}

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the claim cost API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "API server port",
				EnvVars: []string{"CLAIMCOST_PORT", "PORT"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Require this X-API-Key on /api routes",
				EnvVars: []string{"CLAIMCOST_API_KEY"},
			},
			&cli.DurationFlag{
				Name:    "request-timeout",
				Value:   30 * time.Second,
				Usage:   "Per-request timeout",
				EnvVars: []string{"CLAIMCOST_REQUEST_TIMEOUT"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	store, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := newEngine(c, store)
	if err != nil {
		return err
	}

	cfg := api.DefaultConfig()
	cfg.Port = c.Int("port")
	cfg.APIKey = c.String("api-key")
	cfg.RequestTimeout = c.Duration("request-timeout")

	return api.NewServer(engine, cfg).StartWithGracefulShutdown()
}

// =============================================================================
// CATALOG COMMAND
// =============================================================================

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Manage catalog price lists",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import a price list from a file or s3:// URI",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Usage:    "Local path or s3://bucket/key",
						Required: true,
					},
				},
				Action: runCatalogImport,
			},
			{
				Name:   "migrate",
				Usage:  "Create or upgrade the catalog schema",
				Action: runCatalogMigrate,
			},
			{
				Name:    "snapshots",
				Aliases: []string{"list"},
				Usage:   "List imported price lists",
				Action:  runCatalogSnapshots,
			},
		},
	}
}

func runCatalogImport(c *cli.Context) error {
	ctx := commandContext(c)

	doc, err := ingestion.NewFetcher(nil).Fetch(ctx, c.String("source"))
	if err != nil {
		return err
	}
	log.Info().Str("source", doc.URI).Str("hash", doc.Hash).Int("bytes", doc.Size).Msg("fetched price list")

	var ingester ingestion.Ingester
	switch c.String("store") {
	case storeClickHouse:
		store, err := openClickHouse(c)
		if err != nil {
			return err
		}
		defer store.Close()
		ingester = ingestion.NewClickHouseAdapter(store)
	case storePostgres:
		store, err := openPostgres(c)
		if err != nil {
			return err
		}
		defer store.Close()
		ingester = ingestion.NewPostgresAdapter(store)
	default:
		return fmt.Errorf("catalog import needs --store clickhouse or postgres")
	}

	result, err := ingester.Ingest(ctx, doc)
	if err != nil {
		return fmt.Errorf("price list import failed: %w", err)
	}
	if result.Duplicate {
		fmt.Printf("Price list %s %s already imported as %s\n", result.Name, result.Version, result.ID)
		return nil
	}
	fmt.Printf("Imported %s %s as %s: %d definitions, %d regions, %d carriers in %s\n",
		result.Name, result.Version, result.ID,
		result.DefinitionCount, result.RegionCount, result.CarrierCount,
		result.Duration.Round(time.Millisecond))
	return nil
}

func runCatalogMigrate(c *cli.Context) error {
	ctx := commandContext(c)

	switch c.String("store") {
	case storeClickHouse:
		store, err := openClickHouse(c)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	case storePostgres:
		store, err := openPostgres(c)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("catalog migrate needs --store clickhouse or postgres")
	}
	log.Info().Str("store", c.String("store")).Msg("catalog schema up to date")
	return nil
}

func runCatalogSnapshots(c *cli.Context) error {
	ctx := commandContext(c)

	var rows []priceListRow
	switch c.String("store") {
	case storeClickHouse:
		store, err := openClickHouse(c)
		if err != nil {
			return err
		}
		defer store.Close()
		snapshots, err := store.ListSnapshots(ctx)
		if err != nil {
			return err
		}
		for _, s := range snapshots {
			rows = append(rows, priceListRow{s.ID.String(), s.Name, s.Version, s.Hash, s.ItemCount, s.IsActive, s.CreatedAt})
		}
	case storePostgres:
		store, err := openPostgres(c)
		if err != nil {
			return err
		}
		defer store.Close()
		lists, err := store.ListPriceLists(ctx)
		if err != nil {
			return err
		}
		for _, l := range lists {
			rows = append(rows, priceListRow{l.ID.String(), l.Name, l.Version, l.Hash, l.ItemCount, l.IsActive, l.CreatedAt})
		}
	default:
		return fmt.Errorf("catalog snapshots needs --store clickhouse or postgres")
	}
	return writePriceLists(os.Stdout, rows)
}
