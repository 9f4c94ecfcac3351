package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"solTradeBot/internal/domain"
)

// minSizeFraction is the share of MaxPositionSizeSOL that must still be available
// before a new position is worth opening.
const minSizeFraction = 0.5

// lamportPlaces is the SOL precision sizes are truncated to.
const lamportPlaces = 9

// BudgetConfig holds the per-strategy limits the gate enforces
type BudgetConfig struct {
	MaxConcurrentPositions int
	MaxPositionSizeSOL     float64
	TotalBudgetSOL         float64
}

// ConfigFromStrategy extracts the budget limits from a strategy configuration.
func ConfigFromStrategy(cfg domain.StrategyConfig) BudgetConfig {
	return BudgetConfig{
		MaxConcurrentPositions: cfg.MaxConcurrentPositions,
		MaxPositionSizeSOL:     cfg.MaxPositionSizeSOL,
		TotalBudgetSOL:         cfg.TotalBudgetSOL,
	}
}

// BudgetStats summarises a strategy's open exposure
type BudgetStats struct {
	OpenPositions int
	UsedBudget    float64
	Available     float64
}

// BudgetManager decides whether a strategy may open another position and how large
// it may be. It holds no state; callers pass the strategy's open positions.
type BudgetManager struct {
	config BudgetConfig
}

// NewBudgetManager creates a new budget gate for one strategy's limits
func NewBudgetManager(config BudgetConfig) *BudgetManager {
	return &BudgetManager{config: config}
}

// Stats computes exposure over the given positions. Only OPEN positions count.
func (b *BudgetManager) Stats(open []*domain.Position) BudgetStats {
	var stats BudgetStats
	used := decimal.Zero
	for _, p := range open {
		if p == nil || !p.IsOpen() {
			continue
		}
		stats.OpenPositions++
		used = used.Add(decimal.NewFromFloat(p.InitialInvestment))
	}
	stats.UsedBudget = used.InexactFloat64()
	stats.Available = decimal.NewFromFloat(b.config.TotalBudgetSOL).Sub(used).InexactFloat64()
	return stats
}

// ValidateCapacity checks the concurrency cap and the half-size budget threshold.
// The returned error describes which limit blocked the trade.
func (b *BudgetManager) ValidateCapacity(open []*domain.Position) (BudgetStats, error) {
	stats := b.Stats(open)

	// Check number of open positions
	if stats.OpenPositions >= b.config.MaxConcurrentPositions {
		return stats, fmt.Errorf("open positions %d reached maximum allowed %d", stats.OpenPositions, b.config.MaxConcurrentPositions)
	}

	// Check remaining budget
	minSize := b.config.MaxPositionSizeSOL * minSizeFraction
	if stats.Available < minSize {
		return stats, fmt.Errorf("available budget %.4f SOL below minimum position size %.4f SOL", stats.Available, minSize)
	}

	return stats, nil
}

// PositionSize returns min(MaxPositionSizeSOL*factor, available) truncated to
// lamports, so a position never spends more than is available. factor is clamped
// to [minSizeFraction, 1].
func (b *BudgetManager) PositionSize(available, factor float64) float64 {
	factor = math.Max(minSizeFraction, math.Min(factor, 1))
	size := decimal.NewFromFloat(b.config.MaxPositionSizeSOL).Mul(decimal.NewFromFloat(factor))
	size = decimal.Min(size, decimal.NewFromFloat(available)).Truncate(lamportPlaces)
	if size.IsNegative() {
		return 0
	}
	return size.InexactFloat64()
}
