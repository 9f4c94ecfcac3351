package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"solTradeBot/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // "text" or "json"

	// Database
	DBPath string

	// Engine
	SimulationMode        bool // Synthesise prices when every quote source fails
	AutoTraderEnabled     bool
	MonitorInterval       time.Duration
	ScanInterval          time.Duration
	ExecuteInterval       time.Duration
	BuySlippageBps        int
	ExitSlippageBps       int
	OpportunityQueueLimit int

	// Paper trading
	PaperBalanceSOL      float64
	PaperSlippagePercent float64

	// Price providers
	JupiterPriceURL  string
	DexScreenerURL   string
	HTTPTimeout      time.Duration
	ProviderRPM      int // Requests per minute per provider
	PriceCacheTTL    time.Duration
	RedisAddr        string // Empty disables the shared price cache
	RedisPassword    string
	RedisDB          int
	BinanceAPIKey    string // Optional; the mark price endpoint is public
	BinanceSecretKey string
	BinanceTestnet   bool

	// Discovery and risk
	RugcheckURL          string
	PumpPortalWSURL      string
	SolanaRPCURL         string
	TokenWatchlistSize   int
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	// Observability
	MetricsAddr string // Empty disables the /metrics endpoint
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be 'text' or 'json'")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/soltrader.db")

	// Engine
	cfg.SimulationMode = getEnvAsBool("SIMULATION_MODE", false)
	cfg.AutoTraderEnabled = getEnvAsBool("AUTOTRADER_ENABLED", true)
	cfg.MonitorInterval, err = getEnvAsSecondsRequired("MONITOR_INTERVAL_SECONDS", 10)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.ScanInterval, err = getEnvAsSecondsRequired("SCAN_INTERVAL_SECONDS", 60)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.ExecuteInterval, err = getEnvAsSecondsRequired("EXECUTE_INTERVAL_SECONDS", 30)
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg.BuySlippageBps, err = getEnvAsIntRequired("BUY_SLIPPAGE_BPS", 100)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BUY_SLIPPAGE_BPS: %v", err))
	} else if cfg.BuySlippageBps <= 0 || cfg.BuySlippageBps > 5000 {
		errs = append(errs, "BUY_SLIPPAGE_BPS must be between 1 and 5000")
	}
	cfg.ExitSlippageBps, err = getEnvAsIntRequired("EXIT_SLIPPAGE_BPS", 300)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid EXIT_SLIPPAGE_BPS: %v", err))
	} else if cfg.ExitSlippageBps <= 0 || cfg.ExitSlippageBps > 5000 {
		errs = append(errs, "EXIT_SLIPPAGE_BPS must be between 1 and 5000")
	}
	cfg.OpportunityQueueLimit = getEnvAsInt("OPPORTUNITY_QUEUE_LIMIT", 50)
	if cfg.OpportunityQueueLimit <= 0 {
		errs = append(errs, "OPPORTUNITY_QUEUE_LIMIT must be positive")
	}

	// Paper trading
	cfg.PaperBalanceSOL, err = getEnvAsFloatRequired("PAPER_BALANCE_SOL", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PAPER_BALANCE_SOL: %v", err))
	} else if cfg.PaperBalanceSOL < 0 {
		errs = append(errs, "PAPER_BALANCE_SOL cannot be negative")
	}
	cfg.PaperSlippagePercent, err = getEnvAsFloatRequired("PAPER_SLIPPAGE_PERCENT", 0.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PAPER_SLIPPAGE_PERCENT: %v", err))
	} else if cfg.PaperSlippagePercent < 0 || cfg.PaperSlippagePercent >= 100 {
		errs = append(errs, "PAPER_SLIPPAGE_PERCENT must be in [0, 100)")
	}

	// Price providers
	cfg.JupiterPriceURL = getEnv("JUPITER_PRICE_URL", "https://api.jup.ag/price/v2")
	cfg.DexScreenerURL = getEnv("DEXSCREENER_URL", "https://api.dexscreener.com/latest/dex/tokens")
	cfg.HTTPTimeout, err = getEnvAsSecondsRequired("HTTP_TIMEOUT_SECONDS", 10)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.ProviderRPM = getEnvAsInt("PROVIDER_RPM", 120)
	if cfg.ProviderRPM <= 0 {
		errs = append(errs, "PROVIDER_RPM must be positive")
	}
	cfg.PriceCacheTTL, err = getEnvAsSecondsRequired("PRICE_CACHE_TTL_SECONDS", 5)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvAsInt("REDIS_DB", 0)
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.BinanceTestnet = getEnvAsBool("BINANCE_TESTNET", false)

	// Discovery and risk
	cfg.RugcheckURL = getEnv("RUGCHECK_URL", "https://api.rugcheck.xyz")
	cfg.PumpPortalWSURL = getEnv("PUMPPORTAL_WS_URL", "wss://pumpportal.fun/api/data")
	cfg.SolanaRPCURL = getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	cfg.TokenWatchlistSize = getEnvAsInt("TOKEN_WATCHLIST_SIZE", 200)
	if cfg.TokenWatchlistSize <= 0 {
		errs = append(errs, "TOKEN_WATCHLIST_SIZE must be positive")
	}
	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second
	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	// Observability
	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

// getEnvAsSecondsRequired reads a positive whole number of seconds.
func getEnvAsSecondsRequired(key string, defaultSeconds int) (time.Duration, error) {
	secs, err := getEnvAsIntRequired(key, defaultSeconds)
	if err != nil {
		return 0, err
	}
	if secs <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return time.Duration(secs) * time.Second, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
