package ports

import (
	"context"
	"time"

	"solTradeBot/internal/domain"
)

// SwapRequest describes a trade intent against the base asset.
// For Buy, Amount is in SOL; for Sell, Amount is in token units.
type SwapRequest struct {
	Direction   domain.SwapDirection
	Token       string
	Amount      float64
	SlippageBps int
}

// SwapResult holds the realised amounts of a settled swap.
type SwapResult struct {
	InAmount       float64 // Amount spent (SOL for Buy, tokens for Sell)
	OutAmount      float64 // Amount received (tokens for Buy, SOL for Sell)
	PriceImpactPct float64
	TxRef          string
	Timestamp      time.Time
}

// SwapProvider executes (or simulates) a swap. A non-nil error means nothing settled.
type SwapProvider interface {
	Swap(ctx context.Context, req SwapRequest) (*SwapResult, error)
}

// Wallet exposes the trading account. Key management lives outside this module.
type Wallet interface {
	Address() string
	BalanceSOL(ctx context.Context) (float64, error)
}

// EventPublisher delivers lifecycle events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event)
}
