package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solTradeBot/internal/domain"
)

func openPosition(strategyID string, investment float64) *domain.Position {
	return &domain.Position{StrategyID: strategyID, InitialInvestment: investment, Status: domain.StatusOpen}
}

func TestBudgetManager(t *testing.T) {
	manager := NewBudgetManager(ConfigFromStrategy(domain.DefaultStrategyConfig()))

	// Empty strategy has the full budget
	stats, err := manager.ValidateCapacity(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.OpenPositions)
	assert.InDelta(t, 1.0, stats.Available, 1e-9)

	// Closed positions do not count
	closed := openPosition("s", 0.5)
	closed.Status = domain.StatusClosed
	stats = manager.Stats([]*domain.Position{openPosition("s", 0.1), closed})
	assert.Equal(t, 1, stats.OpenPositions)
	assert.InDelta(t, 0.1, stats.UsedBudget, 1e-9)
	assert.InDelta(t, 0.9, stats.Available, 1e-9)
}

func TestBudgetManagerConcurrencyLimit(t *testing.T) {
	manager := NewBudgetManager(BudgetConfig{MaxConcurrentPositions: 1, MaxPositionSizeSOL: 0.1, TotalBudgetSOL: 1})

	_, err := manager.ValidateCapacity([]*domain.Position{openPosition("s", 0.05)})
	assert.Error(t, err)
}

func TestBudgetManagerHalfSizeThreshold(t *testing.T) {
	manager := NewBudgetManager(BudgetConfig{MaxConcurrentPositions: 10, MaxPositionSizeSOL: 0.5, TotalBudgetSOL: 1})

	tests := []struct {
		name    string
		used    float64
		wantErr bool
	}{
		{"plenty left", 0.25, false},
		{"exactly half size left", 0.75, false},
		{"below half size", 0.8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.ValidateCapacity([]*domain.Position{openPosition("s", tt.used)})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBudgetManagerPositionSize(t *testing.T) {
	manager := NewBudgetManager(BudgetConfig{MaxConcurrentPositions: 3, MaxPositionSizeSOL: 0.1, TotalBudgetSOL: 1})

	assert.InDelta(t, 0.075, manager.PositionSize(1, 0.75), 1e-9)
	assert.InDelta(t, 0.06, manager.PositionSize(0.06, 1), 1e-9, "capped by available")
	assert.InDelta(t, 0.05, manager.PositionSize(1, 0.1), 1e-9, "factor clamped to the lower bound")
	assert.InDelta(t, 0.1, manager.PositionSize(1, 3), 1e-9, "factor clamped to the upper bound")
	assert.Equal(t, 0.0, manager.PositionSize(-1, 1))
	assert.Equal(t, 0.123456789, manager.PositionSize(0.1234567899, 1), "truncated, never rounded up past available")
}

func TestBudgetStatsExactArithmetic(t *testing.T) {
	manager := NewBudgetManager(BudgetConfig{MaxConcurrentPositions: 10, MaxPositionSizeSOL: 0.4, TotalBudgetSOL: 1})

	stats, err := manager.ValidateCapacity([]*domain.Position{openPosition("s", 0.4), openPosition("s", 0.4)})
	require.NoError(t, err, "exactly half a position left")
	assert.Equal(t, 0.2, stats.Available)
	assert.Equal(t, 0.2, manager.PositionSize(stats.Available, 1))
}

func TestBudgetNeverExceeded(t *testing.T) {
	manager := NewBudgetManager(BudgetConfig{MaxConcurrentPositions: 100, MaxPositionSizeSOL: 0.3, TotalBudgetSOL: 1})

	var open []*domain.Position
	for i := 0; i < 20; i++ {
		stats, err := manager.ValidateCapacity(open)
		if err != nil {
			break
		}
		size := manager.PositionSize(stats.Available, 1)
		open = append(open, openPosition("s", size))
	}
	assert.LessOrEqual(t, manager.Stats(open).UsedBudget, 1.0+1e-9)
}
