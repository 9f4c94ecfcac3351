package ports

import (
	"context"
	"time"

	"solTradeBot/internal/domain"
)

// PriceOracle quotes a token in SOL.
type PriceOracle interface {
	// Price returns the current price of token denominated in SOL per token unit.
	Price(ctx context.Context, token string) (float64, error)
}

// PriceAnchor is an optional PriceOracle capability: it receives the entry price of
// new positions so a simulated feed has a reference point.
type PriceAnchor interface {
	Anchor(token string, price float64)
}

// PriceCache stores recently fetched quotes.
type PriceCache interface {
	// GetPrice returns ErrNotFound when nothing fresh is cached.
	GetPrice(ctx context.Context, token string) (float64, error)
	SetPrice(ctx context.Context, token string, price float64, ttl time.Duration) error
}

// RiskAssessment is the opaque output of a risk scorer.
type RiskAssessment struct {
	RiskLevel int // 0 (safe) .. 100 (certain rug)
	Warnings  []string
}

// RiskScorer evaluates a token before any SOL is committed to it.
type RiskScorer interface {
	Score(ctx context.Context, token string) (*RiskAssessment, error)
}

// TokenFeed discovers candidate tokens (new listings, trending tokens).
type TokenFeed interface {
	Discover(ctx context.Context) ([]domain.TokenInfo, error)
}

// HolderCounter reports how many accounts currently hold a token.
type HolderCounter interface {
	HolderCount(ctx context.Context, token string) (int, error)
}
