// Package main runs the unified whale-watching server:
// - Detection (continuous): per-chain block/pending feeds
// - Monitoring: whale token-acquisition polling
// - Launch tracking (scheduled): discovery-feed sweeps
// - Delivery: HTTP query API, WebSocket/SSE push, Prometheus metrics
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"whalewatch/internal/api"
	"whalewatch/internal/chain/evm"
	"whalewatch/internal/chain/solana"
	"whalewatch/internal/detection"
	"whalewatch/internal/domain"
	"whalewatch/internal/fanout"
	"whalewatch/internal/launch"
	"whalewatch/internal/market"
	"whalewatch/internal/monitor"
	"whalewatch/internal/push"
	"whalewatch/internal/scoring"
	"whalewatch/internal/stats"
	"whalewatch/internal/storage"
	chstore "whalewatch/internal/storage/clickhouse"
	"whalewatch/internal/storage/memory"
	"whalewatch/internal/storage/migrations"
	pgstore "whalewatch/internal/storage/postgres"
)

// allStores holds all storage implementations.
type allStores struct {
	alerts   storage.AlertStore
	launches storage.LaunchStore
	archive  storage.TransactionArchive
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	ethRPC := flag.String("eth-rpc", os.Getenv("ETH_RPC_ENDPOINT"), "Ethereum RPC HTTP endpoint")
	ethWS := flag.String("eth-ws", os.Getenv("ETH_WS_ENDPOINT"), "Ethereum WebSocket endpoint (optional, falls back to polling)")
	bnbRPC := flag.String("bnb-rpc", os.Getenv("BNB_RPC_ENDPOINT"), "BNB Chain RPC HTTP endpoint")
	bnbWS := flag.String("bnb-ws", os.Getenv("BNB_WS_ENDPOINT"), "BNB Chain WebSocket endpoint (optional)")
	solRPC := flag.String("solana-rpc", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	etherscanKey := flag.String("etherscan-key", os.Getenv("ETHERSCAN_API_KEY"), "Etherscan API key")
	ethMin := flag.Float64("eth-min", 50, "Minimum ETH transfer to qualify as whale activity")
	ethMax := flag.Float64("eth-max", 0, "Maximum ETH transfer bound (0 = unbounded)")
	ethWhale := flag.Float64("eth-whale-balance", 0, "Minimum ETH balance to track an address as a whale (0 = same as --eth-min)")
	bnbMin := flag.Float64("bnb-min", 200, "Minimum BNB transfer to qualify")
	bnbMax := flag.Float64("bnb-max", 0, "Maximum BNB transfer bound (0 = unbounded)")
	bnbWhale := flag.Float64("bnb-whale-balance", 0, "Minimum BNB balance to track an address as a whale (0 = same as --bnb-min)")
	solMin := flag.Float64("sol-min", 1000, "Minimum SOL transfer to qualify")
	solMax := flag.Float64("sol-max", 0, "Maximum SOL transfer bound (0 = unbounded)")
	solWhale := flag.Float64("sol-whale-balance", 0, "Minimum SOL balance to track an address as a whale (0 = same as --sol-min)")
	pollInterval := flag.Duration("poll-interval", 5*time.Second, "Block poll interval for chains without WebSocket")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	apiAddr := flag.String("api-addr", ":8080", "Query API HTTP address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *ethRPC == "" && *bnbRPC == "" && *solRPC == "" {
		logger.Fatal("at least one of --eth-rpc, --bnb-rpc, --solana-rpc is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Shared plumbing
	bus := fanout.New()
	marketClient := market.NewClient(market.WithEtherscanKey(*etherscanKey))

	scorer := scoring.NewTokenRiskScorer(marketClient, stores.alerts, bus,
		log.New(os.Stdout, "[scorer] ", log.LstdFlags))

	// Chain clients, built lazily per configured endpoint
	var solClient *solana.HTTPClient
	if *solRPC != "" {
		solClient = solana.NewHTTPClient(*solRPC)
	}

	mon := monitor.New(
		&holdingsSource{market: marketClient, solana: solClient},
		func(ctx context.Context, whale, token string, chain domain.Chain, txHash string) {
			if _, err := scorer.AnalyzeAcquisition(ctx, whale, token, chain, txHash); err != nil {
				logger.Printf("acquisition analysis %s/%s: %v", whale, token, err)
			}
		},
		log.New(os.Stdout, "[monitor] ", log.LstdFlags),
	)

	// Detection engines
	type chainSpec struct {
		chain        domain.Chain
		rpc, ws      string
		min, max     float64
		whaleBalance float64
	}
	specs := []chainSpec{
		{domain.ChainEthereum, *ethRPC, *ethWS, *ethMin, *ethMax, *ethWhale},
		{domain.ChainBNB, *bnbRPC, *bnbWS, *bnbMin, *bnbMax, *bnbWhale},
		{domain.ChainSolana, *solRPC, "", *solMin, *solMax, *solWhale},
	}

	var engines []*detection.Engine
	var runners []func(context.Context) error

	for _, spec := range specs {
		if spec.rpc == "" {
			continue
		}
		cfg := detection.Config{
			Chain:           spec.chain,
			MinValue:        spec.min,
			MaxValue:        spec.max,
			MinWhaleBalance: spec.whaleBalance,
			Prices:          marketClient,
			Monitor:         mon,
			Archive:         stores.archive,
			Bus:             bus,
			Logger:          log.New(os.Stdout, fmt.Sprintf("[detect:%s] ", spec.chain), log.LstdFlags),
		}

		if spec.chain == domain.ChainSolana {
			cfg.Client = solClient
		} else {
			evmClient := evm.NewHTTPClient(spec.rpc)
			cfg.Client = evmClient
			cfg.Classify = evm.ClassifyInput
			cfg.TokenLookup = evmClient.TokenMetadata
		}

		engine := detection.NewEngine(cfg)
		engines = append(engines, engine)

		ws := spec.ws
		runners = append(runners, func(ctx context.Context) error {
			if ws != "" {
				wsClient, err := evm.NewWSClient(ctx, ws, nil, cfg.Logger)
				if err != nil {
					return fmt.Errorf("connect %s websocket: %w", engine.Chain(), err)
				}
				defer wsClient.Close()
				return engine.RunStream(ctx, wsClient)
			}
			return engine.RunPoll(ctx, *pollInterval)
		})
	}

	// Aggregates and delivery
	statsEngines := make([]stats.Engine, len(engines))
	apiEngines := make([]api.Engine, len(engines))
	for i, e := range engines {
		statsEngines[i] = e
		apiEngines[i] = e
	}
	statsSvc := stats.New(statsEngines, stores.archive,
		log.New(os.Stdout, "[stats] ", log.LstdFlags))

	tracker := launch.New(marketClient, stores.launches, bus,
		log.New(os.Stdout, "[launch] ", log.LstdFlags))

	hub := push.NewHub(log.New(os.Stdout, "[push] ", log.LstdFlags))

	apiServer := api.NewServer(apiEngines, mon, scorer, statsSvc,
		stores.alerts, stores.launches, log.New(os.Stdout, "[api] ", log.LstdFlags))

	mux := http.NewServeMux()
	apiServer.Register(mux)
	mux.HandleFunc("GET /ws", hub.ServeWS)
	mux.HandleFunc("GET /events", push.SSEHandler(bus, logger))

	httpServer := &http.Server{Addr: *apiAddr, Handler: mux}
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: promhttp.Handler()}

	// Handle shutdown signals
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Shutdown(shutdownCtx)

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	// Start everything
	for _, engine := range engines {
		engine.Start(ctx)
	}
	for i := range runners {
		run := runners[i]
		chainName := engines[i].Chain()
		go func() {
			if err := run(ctx); err != nil && ctx.Err() == nil {
				logger.Printf("detector %s stopped: %v", chainName, err)
			}
		}()
	}
	go statsSvc.Run(ctx, bus)
	go hub.Run(ctx, bus)
	go tracker.Run(ctx)

	go func() {
		logger.Printf("metrics listening on %s", *metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server: %v", err)
		}
	}()

	logger.Printf("API listening on %s", *apiAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("API server: %v", err)
	}

	close(done)
	logger.Println("Shutdown complete")
}

// holdingsSource routes holdings lookups to the right backend per
// chain: Etherscan token balances for EVM chains, token accounts by
// owner on Solana.
type holdingsSource struct {
	market *market.Client
	solana *solana.HTTPClient
}

func (h *holdingsSource) Holdings(ctx context.Context, chain domain.Chain, address string) ([]string, error) {
	switch chain {
	case domain.ChainSolana:
		if h.solana == nil {
			return nil, fmt.Errorf("solana client not configured")
		}
		return h.solana.TokenHoldings(ctx, address)
	default:
		return h.market.AddressTokens(ctx, address)
	}
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			alerts:   memory.NewAlertStore(),
			launches: memory.NewLaunchStore(),
			archive:  memory.NewTransactionArchive(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("prepare clickhouse: %w", err)
	}

	stores := &allStores{
		alerts:   pgstore.NewAlertStore(pool),
		launches: pgstore.NewLaunchStore(pool),
		archive:  chstore.NewTransactionArchive(chConn),
	}
	cleanup := func() {
		pool.Close()
		chConn.Close()
	}
	return stores, cleanup, nil
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
