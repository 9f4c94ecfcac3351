package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"solTradeBot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	solSymbol       = "SOLUSDT"
	defaultCacheTTL = 30 * time.Second
)

// Client reads the SOL/USDT mark price from Binance USDⓈ-M futures. It is the USD
// reference used to convert dollar-quoted token prices into SOL.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	cacheTTL      time.Duration
	now           func() time.Time

	mu       sync.Mutex
	lastUSD  float64
	lastTime time.Time
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string // Optional; only public endpoints are used
	SecretKey  string
	UseTestnet bool
	BaseURL    string        // Overrides the production/testnet URL when set
	CacheTTL   time.Duration // How long a SOL/USD quote is reused (default 30s)
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client: %w", ports.ErrConfigurationError)
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance reference client configured", map[string]interface{}{"baseURL": client.BaseURL})

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		cacheTTL:      ttl,
		now:           time.Now,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1100, -1101, -1102, -1121: // Bad parameters or unknown symbol
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrProviderFailed
		}
		c.logger.Error(ctx, err, operation+" failed with API error", fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrInvalidResponse, err)
	}

	c.logger.Error(ctx, err, operation+" failed", fields)
	return finalErr
}

// GetMarkPrice retrieves the current mark price for a given symbol.
func (c *Client) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetMarkPrice"
	tickers, err := c.futuresClient.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		return 0, c.handleError(ctx, fmt.Errorf("no price data returned for symbol %s", symbol), op)
	}

	price, err := strconv.ParseFloat(tickers[0].MarkPrice, 64)
	if err != nil {
		return 0, c.handleError(ctx, fmt.Errorf("could not parse price '%s': %w", tickers[0].MarkPrice, err), op)
	}
	if price <= 0 {
		return 0, c.handleError(ctx, fmt.Errorf("non-positive mark price %v for %s", price, symbol), op)
	}
	return price, nil
}

// SOLPriceUSD returns the SOL/USDT mark price, reusing a recent quote.
func (c *Client) SOLPriceUSD(ctx context.Context) (float64, error) {
	c.mu.Lock()
	if c.lastUSD > 0 && c.now().Sub(c.lastTime) < c.cacheTTL {
		price := c.lastUSD
		c.mu.Unlock()
		return price, nil
	}
	c.mu.Unlock()

	price, err := c.GetMarkPrice(ctx, solSymbol)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.lastUSD = price
	c.lastTime = c.now()
	c.mu.Unlock()
	return price, nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}
