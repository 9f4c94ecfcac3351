package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"time"

	"solTradeBot/config"
	"solTradeBot/internal/adapters/binanceclient"
	"solTradeBot/internal/adapters/httpjson"
	"solTradeBot/internal/adapters/logger"
	"solTradeBot/internal/adapters/paper"
	"solTradeBot/internal/adapters/pricefeed"
	"solTradeBot/internal/adapters/pumpportal"
	"solTradeBot/internal/adapters/rugcheck"
	"solTradeBot/internal/adapters/solanarpc"
	"solTradeBot/internal/adapters/sqlite"
	"solTradeBot/internal/app"
	"solTradeBot/internal/metrics"
	"solTradeBot/internal/ports"
)

const holderCacheTTL = 5 * time.Minute

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogFormat, cfg.LogLevel, os.Stdout)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized")

	reg := metrics.NewRegistry()

	// 4. Initialize Price Oracle
	oracle, closeCache := buildOracle(ctx, cfg, appLogger, reg)
	defer closeCache()

	// 5. Initialize Paper Wallet and Swap Venue
	wallet := paper.NewWallet("paper-wallet", cfg.PaperBalanceSOL)
	swap, err := paper.NewSwap(paper.SwapConfig{SlippagePercent: cfg.PaperSlippagePercent}, wallet, oracle, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize swap provider")
		log.Fatalf("FATAL: Failed to initialize swap provider: %v", err)
	}

	// 6. Initialize Discovery and Risk
	holders := solanarpc.NewHolderCounter(cfg.SolanaRPCURL, httpjson.New(cfg.HTTPTimeout, cfg.ProviderRPM), holderCacheTTL)
	feed, err := pumpportal.NewFeed(pumpportal.Config{
		URL:                  cfg.PumpPortalWSURL,
		WatchlistSize:        cfg.TokenWatchlistSize,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize token feed")
		log.Fatalf("FATAL: Failed to initialize token feed: %v", err)
	}
	scorer, err := rugcheck.NewScorer(cfg.RugcheckURL, httpjson.New(cfg.HTTPTimeout, cfg.ProviderRPM), appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize risk scorer")
		log.Fatalf("FATAL: Failed to initialize risk scorer: %v", err)
	}

	// 7. Initialize Application Service
	tradingService, err := app.NewTradingService(cfg, appLogger, app.Components{
		Store:   repo,
		Oracle:  oracle,
		Swap:    swap,
		Wallet:  wallet,
		Feed:    feed,
		Holders: holders,
		Scorer:  scorer,
		Runners: []app.Runner{feed},
		Metrics: reg,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(ctx, "Trading service initialized", map[string]interface{}{"simulation": cfg.SimulationMode})

	// 8. Start the Service
	if err := tradingService.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}

// buildOracle assembles the quote chain: Jupiter, then DexScreener with the Binance
// SOL/USDT reference. Redis and simulation are optional.
func buildOracle(ctx context.Context, cfg *config.Config, appLogger ports.Logger, reg *metrics.Registry) (*pricefeed.Oracle, func()) {
	closeCache := func() {}
	oracleCfg := pricefeed.Config{CacheTTL: cfg.PriceCacheTTL, Metrics: reg}

	if cfg.RedisAddr != "" {
		cache, err := pricefeed.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			appLogger.Warn(ctx, "Redis price cache unavailable, continuing without it", map[string]interface{}{"error": err.Error()})
		} else {
			oracleCfg.Cache = cache
			closeCache = func() { _ = cache.Close() }
		}
	}
	if cfg.SimulationMode {
		oracleCfg.Simulator = pricefeed.NewSimulator(time.Now().UnixNano(), 0.02, 0.5)
		appLogger.Warn(ctx, "SIMULATION_MODE is on: prices are synthesised when every source fails")
	}

	var usd pricefeed.USDReference
	binance, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.BinanceAPIKey,
		SecretKey:  cfg.BinanceSecretKey,
		UseTestnet: cfg.BinanceTestnet,
		Logger:     appLogger,
	})
	if err == nil {
		if err := binance.Ping(ctx); err != nil {
			appLogger.Warn(ctx, "Binance unreachable at startup; DexScreener USD pairs may fail", map[string]interface{}{"error": err.Error()})
		}
		usd = binance
	}

	client := httpjson.New(cfg.HTTPTimeout, cfg.ProviderRPM)
	oracle, err := pricefeed.NewOracle(oracleCfg, appLogger,
		pricefeed.NewJupiterSource(cfg.JupiterPriceURL, client),
		pricefeed.NewDexScreenerSource(cfg.DexScreenerURL, httpjson.New(cfg.HTTPTimeout, cfg.ProviderRPM), usd),
	)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize price oracle")
		log.Fatalf("FATAL: Failed to initialize price oracle: %v", err)
	}
	return oracle, closeCache
}
