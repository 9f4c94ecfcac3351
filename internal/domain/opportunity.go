package domain

import "time"

// TokenInfo is the metadata a discovery feed reports for a candidate token.
type TokenInfo struct {
	Address      string
	Name         string
	Symbol       string
	CreatedAt    time.Time
	LiquiditySOL float64
	Holders      int
	NSFW         bool
	Meme         bool
	RiskLevel    int // -1 when the feed has no estimate
}

// RiskUnknown marks a token the feed could not score.
const RiskUnknown = -1

// AgeHours returns the token age relative to now.
func (t TokenInfo) AgeHours(now time.Time) float64 {
	return now.Sub(t.CreatedAt).Hours()
}

// Opportunity is a discovered candidate queued for one strategy. Never persisted.
type Opportunity struct {
	ID           string
	StrategyID   string
	Token        TokenInfo
	RiskLevel    int
	Warnings     []string
	DiscoveredAt time.Time
	Processed    bool
}
